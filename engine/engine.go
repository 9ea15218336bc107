package engine

import (
	"context"
	"errors"
	"time"

	"github.com/avenping/flowengine/action"
	"github.com/avenping/flowengine/analytics"
	"github.com/avenping/flowengine/config"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"github.com/avenping/flowengine/trigger"
	"go.uber.org/zap"
)

const INBOUND_STARTED = "started"
const INBOUND_RESUMED = "resumed"
const INBOUND_RETRIED = "retried"
const INBOUND_REPROMPTED = "reprompted"
const INBOUND_UNMATCHED = "unmatched"

// FlowEngine drives one conversation at a time through its flow. Calls for
// the same conversation must not overlap; the shard dispatcher guarantees
// that within a process and the session version guards across processes.
type FlowEngine struct {
	flows        metadata.Storage
	matcher      *trigger.Matcher
	sessions     persistence.SessionStore
	executor     *action.Executor
	conf         config.EngineConfig
	stateHandler *StateHandlerContainer
	clock        func() time.Time
}

func NewFlowEngine(flows metadata.Storage, sessions persistence.SessionStore, executor *action.Executor, conf config.EngineConfig) *FlowEngine {
	if conf.MaxAutoSteps <= 0 {
		conf.MaxAutoSteps = config.DEFAULT_MAX_AUTO_STEPS
	}
	if conf.MaxFlowDepth <= 0 {
		conf.MaxFlowDepth = config.DEFAULT_MAX_FLOW_DEPTH
	}
	if conf.MaxStepRetries <= 0 {
		conf.MaxStepRetries = config.DEFAULT_MAX_STEP_RETRIES
	}
	if conf.SessionTTL <= 0 {
		conf.SessionTTL = config.DEFAULT_SESSION_TTL
	}
	if conf.RepromptText == "" {
		conf.RepromptText = config.DEFAULT_REPROMPT_TEXT
	}
	return &FlowEngine{
		flows:        flows,
		matcher:      trigger.NewMatcher(flows),
		sessions:     sessions,
		executor:     executor,
		conf:         conf,
		stateHandler: NewStateHandlerContainer(sessions),
		clock:        time.Now,
	}
}

// SetClock replaces the time source used for session timestamps.
func (f *FlowEngine) SetClock(clock func() time.Time) {
	f.clock = clock
}

func (f *FlowEngine) GetSession(ctx context.Context, ownerId string, conversationId string) (*model.FlowSession, error) {
	return f.sessions.Get(ctx, ownerId, conversationId)
}

func (f *FlowEngine) EndSession(ctx context.Context, ownerId string, conversationId string) error {
	return f.sessions.Delete(ctx, ownerId, conversationId)
}

// ProcessInboundMessage resumes the conversation's session or starts the
// flow whose triggers match the text. Step failures, re-prompts and stale
// sessions are handled here and return nil, as are session store outages.
// An error means the flow documents could not be read.
func (f *FlowEngine) ProcessInboundMessage(ctx context.Context, msg model.InboundMessage) error {
	req := action.Request{
		OwnerId:        msg.OwnerId,
		ConversationId: msg.ConversationId,
		ChannelId:      msg.ChannelId,
	}
	session, err := f.sessions.Get(ctx, msg.OwnerId, msg.ConversationId)
	if err != nil {
		logger.Warn("session store unavailable, continuing without session", zap.String("ownerId", msg.OwnerId), zap.String("conversationId", msg.ConversationId), zap.Error(err))
		analytics.RecordStoreFailOpen(ctx)
		session = nil
	}
	if session == nil {
		return f.start(ctx, msg, req)
	}
	return f.resume(ctx, msg, req, session)
}

func (f *FlowEngine) start(ctx context.Context, msg model.InboundMessage, req action.Request) error {
	flow, err := f.matcher.FindFlowForMessage(ctx, msg.OwnerId, msg.Text)
	if err != nil {
		logger.Error("error matching triggers", zap.String("ownerId", msg.OwnerId), zap.Error(err))
		return err
	}
	if flow == nil {
		logger.Debug("no flow matched", zap.String("ownerId", msg.OwnerId), zap.String("conversationId", msg.ConversationId))
		analytics.RecordInbound(ctx, INBOUND_UNMATCHED)
		return nil
	}
	entry, ok := flow.EntryStep()
	if !ok {
		logger.Error("matched flow has no entry step", zap.String("flow", flow.Id))
		return nil
	}
	logger.Info("starting flow", zap.String("flow", flow.Id), zap.String("ownerId", msg.OwnerId), zap.String("conversationId", msg.ConversationId))
	analytics.RecordInbound(ctx, INBOUND_STARTED)
	session := model.NewFlowSession(msg.OwnerId, msg.ConversationId, flow.Id, entry.GetId(), f.clock())
	return f.newStateMachine(session, req).run(ctx, flow, entry)
}

func (f *FlowEngine) resume(ctx context.Context, msg model.InboundMessage, req action.Request, session *model.FlowSession) error {
	flow, step, err := f.locate(ctx, session.FlowId, session.CurrentStepId)
	if err != nil {
		if errors.Is(err, ErrStaleSession) {
			f.discardStale(ctx, session, err)
			return nil
		}
		return err
	}
	sm := f.newStateMachine(session, req)

	switch session.Status {
	case model.SESSION_RETRY, model.SESSION_RUNNING:
		logger.Info("re-running step", zap.String("flow", flow.Id), zap.String("step", step.GetId()), zap.String("status", string(session.Status)), zap.String("conversationId", session.ConversationId))
		analytics.RecordInbound(ctx, INBOUND_RETRIED)
		return sm.run(ctx, flow, step)
	}

	interactive, ok := step.(*model.InteractiveMessage)
	if !ok || !interactive.HasOptions() {
		// nothing to answer, the session is left over from an older flow version
		f.discardStale(ctx, session, ErrStaleSession)
		return f.start(ctx, msg, req)
	}
	idx := trigger.MatchOption(msg.Text, interactive.Options)
	if idx < 0 {
		analytics.RecordInbound(ctx, INBOUND_REPROMPTED)
		req.FlowId = flow.Id
		if err := f.executor.SendText(ctx, req, step.GetId(), f.conf.RepromptText); err != nil {
			logger.Error("error sending re-prompt", zap.String("conversationId", session.ConversationId), zap.Error(err))
		}
		return nil
	}
	analytics.RecordInbound(ctx, INBOUND_RESUMED)
	option := interactive.Options[idx]
	logger.Debug("option selected", zap.String("flow", flow.Id), zap.String("step", step.GetId()), zap.String("label", option.Label))
	if option.Next == "" {
		return sm.finish(ctx, flow)
	}
	next, ok := flow.GetStep(option.Next)
	if !ok {
		f.discardStale(ctx, session, ErrStaleSession)
		return nil
	}
	return sm.run(ctx, flow, next)
}

// locate loads a flow and one of its steps. Missing flows or steps are
// reported as ErrStaleSession, store failures are returned as is.
func (f *FlowEngine) locate(ctx context.Context, flowId string, stepId string) (*model.FlowDefinition, model.Step, error) {
	flow, err := f.flows.GetFlowById(ctx, flowId)
	if err != nil {
		if errors.Is(err, metadata.ErrFlowNotFound) {
			return nil, nil, ErrStaleSession
		}
		logger.Error("error loading flow", zap.String("flow", flowId), zap.Error(err))
		return nil, nil, err
	}
	step, ok := flow.GetStep(stepId)
	if !ok {
		return nil, nil, ErrStaleSession
	}
	return flow, step, nil
}

func (f *FlowEngine) discardStale(ctx context.Context, session *model.FlowSession, reason error) {
	logger.Warn("discarding stale session", zap.String("flow", session.FlowId), zap.String("step", session.CurrentStepId), zap.String("conversationId", session.ConversationId), zap.Error(reason))
	f.stateHandler.GetHandler(END_STALE)(ctx, session)
}

func (f *FlowEngine) newStateMachine(session *model.FlowSession, req action.Request) *stateMachine {
	return &stateMachine{
		engine:  f,
		session: session,
		req:     req,
	}
}
