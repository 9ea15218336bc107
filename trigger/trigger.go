package trigger

import (
	"context"
	"sort"
	"strings"

	"github.com/avenping/flowengine/model"
)

// FlowSource is the read side of the flow document store the matcher needs.
type FlowSource interface {
	GetFlowsForOwner(ctx context.Context, ownerId string, status model.FlowStatus) ([]*model.FlowDefinition, error)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Match reports whether the trimmed, case-folded message contains any of the
// trimmed, case-folded triggers anywhere. Blank triggers never match.
func Match(message string, triggers []string) bool {
	msg := normalize(message)
	for _, t := range triggers {
		t = normalize(t)
		if t == "" {
			continue
		}
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}

// MatchOption returns the index of the first option whose label matches the
// message using the same policy as Match, or -1.
func MatchOption(message string, options []model.ReplyOption) int {
	for i, o := range options {
		if Match(message, []string{o.Label}) {
			return i
		}
	}
	return -1
}

type Matcher struct {
	flows FlowSource
}

func NewMatcher(flows FlowSource) *Matcher {
	return &Matcher{flows: flows}
}

// FindFlowForMessage returns the first active flow of the owner whose
// triggers match the message. Flows are tried by descending priority and,
// within a priority, in the order the store returns them.
func (m *Matcher) FindFlowForMessage(ctx context.Context, ownerId string, message string) (*model.FlowDefinition, error) {
	flows, err := m.flows.GetFlowsForOwner(ctx, ownerId, model.FLOW_STATUS_ACTIVE)
	if err != nil {
		return nil, err
	}
	ordered := make([]*model.FlowDefinition, 0, len(flows))
	for _, f := range flows {
		if f.IsActive() && f.OwnerId == ownerId {
			ordered = append(ordered, f)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	for _, f := range ordered {
		if Match(message, f.Triggers) {
			return f, nil
		}
	}
	return nil, nil
}
