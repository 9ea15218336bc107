package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

type FlowStatus string

const FLOW_STATUS_ACTIVE FlowStatus = "ACTIVE"
const FLOW_STATUS_INACTIVE FlowStatus = "INACTIVE"

type StepType string

const STEP_TYPE_MEDIA StepType = "media"
const STEP_TYPE_INTERACTIVE StepType = "interactive"
const STEP_TYPE_NESTED_FLOW StepType = "nested_flow"
const STEP_TYPE_SUPPORT StepType = "support"

type MediaKind string

const MEDIA_IMAGE MediaKind = "image"
const MEDIA_VIDEO MediaKind = "video"
const MEDIA_AUDIO MediaKind = "audio"
const MEDIA_DOCUMENT MediaKind = "document"

type EscalationKind string

const ESCALATION_CALL EscalationKind = "call"
const ESCALATION_CHAT EscalationKind = "chat"

var ErrUnknownStepType = errors.New("unknown step type")

// FlowDefinition is the engine's read-only view of an authored flow.
type FlowDefinition struct {
	Id       string     `json:"id"`
	OwnerId  string     `json:"ownerId"`
	Name     string     `json:"name"`
	Status   FlowStatus `json:"status"`
	Priority int        `json:"priority,omitempty"`
	Triggers []string   `json:"triggers"`
	Entry    string     `json:"entry,omitempty"`
	Steps    []Step     `json:"steps"`
}

// EntryStep returns the designated entry step, or the first step in
// document order when none is named.
func (f *FlowDefinition) EntryStep() (Step, bool) {
	if f.Entry != "" {
		return f.GetStep(f.Entry)
	}
	if len(f.Steps) == 0 {
		return nil, false
	}
	return f.Steps[0], true
}

func (f *FlowDefinition) GetStep(id string) (Step, bool) {
	for _, s := range f.Steps {
		if s.GetId() == id {
			return s, true
		}
	}
	return nil, false
}

func (f *FlowDefinition) IsActive() bool {
	return f.Status == FLOW_STATUS_ACTIVE
}

type flowDocument struct {
	Id       string            `json:"id"`
	OwnerId  string            `json:"ownerId"`
	Name     string            `json:"name"`
	Status   FlowStatus        `json:"status"`
	Priority int               `json:"priority"`
	Triggers []string          `json:"triggers"`
	Entry    string            `json:"entry"`
	Steps    []json.RawMessage `json:"steps"`
}

func (f *FlowDefinition) UnmarshalJSON(data []byte) error {
	var doc flowDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	steps := make([]Step, 0, len(doc.Steps))
	for i, raw := range doc.Steps {
		step, err := DecodeStep(raw)
		if err != nil {
			return fmt.Errorf("flow %s step %d: %w", doc.Id, i, err)
		}
		steps = append(steps, step)
	}
	*f = FlowDefinition{
		Id:       doc.Id,
		OwnerId:  doc.OwnerId,
		Name:     doc.Name,
		Status:   doc.Status,
		Priority: doc.Priority,
		Triggers: doc.Triggers,
		Entry:    doc.Entry,
		Steps:    steps,
	}
	return nil
}

// DecodeStep reads the type tag of a raw step and decodes it into the
// matching concrete step.
func DecodeStep(raw []byte) (Step, error) {
	tag := StepType(gjson.GetBytes(raw, "type").String())
	var step Step
	switch tag {
	case STEP_TYPE_MEDIA:
		step = &MediaMessage{}
	case STEP_TYPE_INTERACTIVE:
		step = &InteractiveMessage{}
	case STEP_TYPE_NESTED_FLOW:
		step = &NestedFlowInvoke{}
	case STEP_TYPE_SUPPORT:
		step = &SupportEscalation{}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStepType, tag)
	}
	if err := json.Unmarshal(raw, step); err != nil {
		return nil, err
	}
	return step, nil
}
