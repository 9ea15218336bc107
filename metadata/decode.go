package metadata

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/util"
	"github.com/tidwall/gjson"
)

// DecodeJSON decodes a single flow object or an array of flows and validates
// every flow.
func DecodeJSON(data []byte) ([]*model.FlowDefinition, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidFlow)
	}
	var flows []*model.FlowDefinition
	if gjson.ParseBytes(data).IsArray() {
		if err := json.Unmarshal(data, &flows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
		}
	} else {
		var flow model.FlowDefinition
		if err := json.Unmarshal(data, &flow); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
		}
		flows = append(flows, &flow)
	}
	for _, f := range flows {
		if err := Validate(f); err != nil {
			return nil, err
		}
	}
	return flows, nil
}

func DecodeYAML(data []byte) ([]*model.FlowDefinition, error) {
	raw, err := util.YamlToJson(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}
	return DecodeJSON(raw)
}

// DecodeFile picks the decoder from the file extension.
func DecodeFile(name string, data []byte) ([]*model.FlowDefinition, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".json":
		return DecodeJSON(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file %s", ErrInvalidFlow, name)
	}
}

func invalid(flowId string, format string, args ...any) error {
	return fmt.Errorf("%w: flow %q: %s", ErrInvalidFlow, flowId, fmt.Sprintf(format, args...))
}

// Validate checks the structural invariants the engine relies on. Steps
// that nothing transitions to are allowed.
func Validate(f *model.FlowDefinition) error {
	if f.Id == "" {
		return invalid(f.Id, "missing id")
	}
	if f.OwnerId == "" {
		return invalid(f.Id, "missing owner")
	}
	if f.Status != model.FLOW_STATUS_ACTIVE && f.Status != model.FLOW_STATUS_INACTIVE {
		return invalid(f.Id, "unknown status %q", f.Status)
	}
	if len(f.Steps) == 0 {
		return invalid(f.Id, "no steps")
	}
	ids := make(map[string]struct{}, len(f.Steps))
	for _, s := range f.Steps {
		if s.GetId() == "" {
			return invalid(f.Id, "step without id")
		}
		if _, ok := ids[s.GetId()]; ok {
			return invalid(f.Id, "duplicate step id %q", s.GetId())
		}
		ids[s.GetId()] = struct{}{}
	}
	if _, ok := f.EntryStep(); !ok {
		return invalid(f.Id, "entry step %q not found", f.Entry)
	}
	checkNext := func(from string, next string) error {
		if next == "" {
			return nil
		}
		if _, ok := ids[next]; !ok {
			return invalid(f.Id, "step %q points to unknown step %q", from, next)
		}
		return nil
	}
	for _, s := range f.Steps {
		if err := checkNext(s.GetId(), s.GetNext()); err != nil {
			return err
		}
		switch step := s.(type) {
		case *model.MediaMessage:
			switch step.Kind {
			case model.MEDIA_IMAGE, model.MEDIA_VIDEO, model.MEDIA_AUDIO, model.MEDIA_DOCUMENT:
			default:
				return invalid(f.Id, "step %q has unknown media kind %q", step.Id, step.Kind)
			}
			if step.MediaRef == "" {
				return invalid(f.Id, "step %q has no media reference", step.Id)
			}
		case *model.InteractiveMessage:
			if strings.TrimSpace(step.Body) == "" {
				return invalid(f.Id, "step %q has empty body", step.Id)
			}
			for _, o := range step.Options {
				if strings.TrimSpace(o.Label) == "" {
					return invalid(f.Id, "step %q has an option without label", step.Id)
				}
				if err := checkNext(step.Id, o.Next); err != nil {
					return err
				}
			}
		case *model.NestedFlowInvoke:
			if step.TargetFlowId == "" {
				return invalid(f.Id, "step %q has no target flow", step.Id)
			}
			if step.TargetFlowId == f.Id {
				return invalid(f.Id, "step %q invokes its own flow", step.Id)
			}
		case *model.SupportEscalation:
			if step.Kind != model.ESCALATION_CALL && step.Kind != model.ESCALATION_CHAT {
				return invalid(f.Id, "step %q has unknown escalation kind %q", step.Id, step.Kind)
			}
			if step.AgentPhone == "" {
				return invalid(f.Id, "step %q has no agent number", step.Id)
			}
		default:
			return invalid(f.Id, "step %q has unsupported type %T", s.GetId(), s)
		}
	}
	return nil
}
