package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avenping/flowengine/gateway"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/msglog"
)

var ErrUnsupportedStep = errors.New("unsupported step")
var ErrNestedFlowUnavailable = errors.New("nested flow unavailable")

// Request identifies the conversation a step runs for.
type Request struct {
	OwnerId        string
	ConversationId string
	ChannelId      string
	FlowId         string
}

// Result is the outcome of one step. Nested is set when the step hands
// control to another flow.
type Result struct {
	Success       bool
	ShouldSuspend bool
	Nested        *model.FlowDefinition
	Err           error
}

func success() Result {
	return Result{Success: true}
}

func failure(err error) Result {
	return Result{Success: false, Err: err}
}

type Action interface {
	GetId() string
	GetType() model.StepType
	GetNext() string
	Execute(ctx context.Context, req Request) Result
}

type baseAction struct {
	step   model.Step
	sender *sender
}

func (ba *baseAction) GetId() string {
	return ba.step.GetId()
}

func (ba *baseAction) GetType() model.StepType {
	return ba.step.GetType()
}

func (ba *baseAction) GetNext() string {
	return ba.step.GetNext()
}

type SupportTemplates struct {
	Call     string
	Chat     string
	Language string
}

func (t SupportTemplates) For(kind model.EscalationKind) string {
	if kind == model.ESCALATION_CALL {
		return t.Call
	}
	return t.Chat
}

type ExecutorConfig struct {
	Gateway   gateway.Gateway
	Flows     metadata.Storage
	Contacts  gateway.ContactDirectory
	Log       msglog.Log
	Templates SupportTemplates
	Clock     func() time.Time
}

// Executor turns flow steps into channel sends.
type Executor struct {
	sender    *sender
	flows     metadata.Storage
	contacts  gateway.ContactDirectory
	templates SupportTemplates
}

func NewExecutor(conf ExecutorConfig) *Executor {
	clock := conf.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Executor{
		sender: &sender{
			gateway: conf.Gateway,
			log:     conf.Log,
			clock:   clock,
		},
		flows:     conf.Flows,
		contacts:  conf.Contacts,
		templates: conf.Templates,
	}
}

func (e *Executor) NewAction(step model.Step) (Action, error) {
	base := baseAction{step: step, sender: e.sender}
	switch s := step.(type) {
	case *model.MediaMessage:
		return NewMediaAction(s, base), nil
	case *model.InteractiveMessage:
		return NewInteractiveAction(s, base), nil
	case *model.NestedFlowInvoke:
		return NewNestedFlowAction(s, e.flows, base), nil
	case *model.SupportEscalation:
		return NewSupportAction(s, e.contacts, e.templates, base), nil
	default:
		return nil, fmt.Errorf("%w %T", ErrUnsupportedStep, step)
	}
}

func (e *Executor) Execute(ctx context.Context, step model.Step, req Request) Result {
	act, err := e.NewAction(step)
	if err != nil {
		return failure(err)
	}
	return act.Execute(ctx, req)
}

// SendText sends a plain text outside of any step, such as a re-prompt.
func (e *Executor) SendText(ctx context.Context, req Request, stepId string, body string) error {
	return e.sender.text(ctx, req, stepId, body)
}
