package model

import "time"

type SessionStatus string

const SESSION_RUNNING SessionStatus = "RUNNING"
const SESSION_SUSPENDED SessionStatus = "SUSPENDED"

// SESSION_RETRY marks a session whose current step failed to execute and
// must be re-run on the next inbound message.
const SESSION_RETRY SessionStatus = "RETRY"

// Frame is a caller position to return to once a nested flow terminates.
type Frame struct {
	FlowId string `json:"flowId"`
	StepId string `json:"stepId"`
}

type FlowSession struct {
	OwnerId        string        `json:"ownerId"`
	ConversationId string        `json:"conversationId"`
	FlowId         string        `json:"flowId"`
	CurrentStepId  string        `json:"currentStepId"`
	Status         SessionStatus `json:"status"`
	Frames         []Frame       `json:"frames,omitempty"`
	// Attempts counts consecutive failed executions of the current step.
	Attempts       int           `json:"attempts,omitempty"`
	Version        int64         `json:"version"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func NewFlowSession(ownerId string, conversationId string, flowId string, stepId string, now time.Time) *FlowSession {
	return &FlowSession{
		OwnerId:        ownerId,
		ConversationId: conversationId,
		FlowId:         flowId,
		CurrentStepId:  stepId,
		Status:         SESSION_RUNNING,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *FlowSession) MoveTo(flowId string, stepId string, status SessionStatus, now time.Time) {
	s.FlowId = flowId
	s.CurrentStepId = stepId
	s.Status = status
	s.UpdatedAt = now
}

func (s *FlowSession) Push(frame Frame) {
	s.Frames = append(s.Frames, frame)
}

func (s *FlowSession) Pop() (Frame, bool) {
	if len(s.Frames) == 0 {
		return Frame{}, false
	}
	top := s.Frames[len(s.Frames)-1]
	s.Frames = s.Frames[:len(s.Frames)-1]
	return top, true
}

func (s *FlowSession) Depth() int {
	return len(s.Frames)
}

func (s *FlowSession) Clone() *FlowSession {
	c := *s
	if s.Frames != nil {
		c.Frames = append([]Frame(nil), s.Frames...)
	}
	return &c
}
