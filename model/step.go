package model

import "encoding/json"

// Step is the closed set of flow steps. Only the types in this file
// implement it.
type Step interface {
	GetId() string
	GetType() StepType
	GetNext() string
	isStep()
}

var _ Step = new(MediaMessage)
var _ Step = new(InteractiveMessage)
var _ Step = new(NestedFlowInvoke)
var _ Step = new(SupportEscalation)

type MediaMessage struct {
	Id       string    `json:"id"`
	Kind     MediaKind `json:"kind"`
	MediaRef string    `json:"mediaRef"`
	Caption  string    `json:"caption"`
	Next     string    `json:"next"`
}

func (m *MediaMessage) GetId() string     { return m.Id }
func (m *MediaMessage) GetType() StepType { return STEP_TYPE_MEDIA }
func (m *MediaMessage) GetNext() string   { return m.Next }
func (m *MediaMessage) isStep()           {}

func (m *MediaMessage) MarshalJSON() ([]byte, error) {
	type alias MediaMessage
	return json.Marshal(struct {
		Type StepType `json:"type"`
		*alias
	}{STEP_TYPE_MEDIA, (*alias)(m)})
}

type ReplyOption struct {
	Label string `json:"label"`
	Next  string `json:"next"`
}

// InteractiveMessage is sent as plain text when it has no options.
type InteractiveMessage struct {
	Id      string        `json:"id"`
	Body    string        `json:"body"`
	Header  string        `json:"header,omitempty"`
	Options []ReplyOption `json:"options,omitempty"`
	Next    string        `json:"next"`
}

func (m *InteractiveMessage) GetId() string     { return m.Id }
func (m *InteractiveMessage) GetType() StepType { return STEP_TYPE_INTERACTIVE }
func (m *InteractiveMessage) GetNext() string   { return m.Next }
func (m *InteractiveMessage) isStep()           {}

func (m *InteractiveMessage) HasOptions() bool {
	return len(m.Options) > 0
}

func (m *InteractiveMessage) Labels() []string {
	labels := make([]string, 0, len(m.Options))
	for _, o := range m.Options {
		labels = append(labels, o.Label)
	}
	return labels
}

func (m *InteractiveMessage) MarshalJSON() ([]byte, error) {
	type alias InteractiveMessage
	return json.Marshal(struct {
		Type StepType `json:"type"`
		*alias
	}{STEP_TYPE_INTERACTIVE, (*alias)(m)})
}

type NestedFlowInvoke struct {
	Id           string `json:"id"`
	TargetFlowId string `json:"targetFlowId"`
	Next         string `json:"next"`
}

func (n *NestedFlowInvoke) GetId() string     { return n.Id }
func (n *NestedFlowInvoke) GetType() StepType { return STEP_TYPE_NESTED_FLOW }
func (n *NestedFlowInvoke) GetNext() string   { return n.Next }
func (n *NestedFlowInvoke) isStep()           {}

func (n *NestedFlowInvoke) MarshalJSON() ([]byte, error) {
	type alias NestedFlowInvoke
	return json.Marshal(struct {
		Type StepType `json:"type"`
		*alias
	}{STEP_TYPE_NESTED_FLOW, (*alias)(n)})
}

type SupportEscalation struct {
	Id         string         `json:"id"`
	AgentPhone string         `json:"agentPhone"`
	Kind       EscalationKind `json:"kind"`
	Next       string         `json:"next"`
}

func (s *SupportEscalation) GetId() string     { return s.Id }
func (s *SupportEscalation) GetType() StepType { return STEP_TYPE_SUPPORT }
func (s *SupportEscalation) GetNext() string   { return s.Next }
func (s *SupportEscalation) isStep()           {}

func (s *SupportEscalation) MarshalJSON() ([]byte, error) {
	type alias SupportEscalation
	return json.Marshal(struct {
		Type StepType `json:"type"`
		*alias
	}{STEP_TYPE_SUPPORT, (*alias)(s)})
}
