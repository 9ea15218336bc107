package engine

import (
	"context"
	"errors"

	"github.com/avenping/flowengine/action"
	"github.com/avenping/flowengine/analytics"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"go.uber.org/zap"
)

var errStop = errors.New("stop walk")

// stateMachine walks one session for the duration of a single inbound
// message.
type stateMachine struct {
	engine  *FlowEngine
	session *model.FlowSession
	req     action.Request
	steps   int
}

// run executes step and follows next pointers until a step suspends, fails
// or the outermost flow ends.
func (sm *stateMachine) run(ctx context.Context, flow *model.FlowDefinition, step model.Step) error {
	err := sm.walk(ctx, flow, step)
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func (sm *stateMachine) walk(ctx context.Context, flow *model.FlowDefinition, step model.Step) error {
	for {
		if sm.steps >= sm.engine.conf.MaxAutoSteps {
			logger.Error("auto step limit reached, ending session", zap.String("flow", flow.Id), zap.String("step", step.GetId()), zap.String("conversationId", sm.session.ConversationId), zap.Int("limit", sm.engine.conf.MaxAutoSteps), zap.Error(ErrStepLimit))
			sm.end(ctx, END_STEP_LIMIT)
			return errStop
		}
		sm.steps++

		sm.session.MoveTo(flow.Id, step.GetId(), model.SESSION_RUNNING, sm.engine.clock())
		if err := sm.save(ctx); err != nil {
			return err
		}

		sm.req.FlowId = flow.Id
		res := sm.engine.executor.Execute(ctx, step, sm.req)
		rec := analytics.StepRecord{
			OwnerId:        sm.session.OwnerId,
			ConversationId: sm.session.ConversationId,
			FlowId:         flow.Id,
			StepId:         step.GetId(),
			StepType:       string(step.GetType()),
		}
		if !res.Success {
			analytics.RecordStep(ctx, string(step.GetType()), "failure")
			analytics.RecordStepFailure(rec, errString(res.Err))
			if errors.Is(res.Err, action.ErrNestedFlowUnavailable) {
				sm.engine.discardStale(ctx, sm.session, res.Err)
				return errStop
			}
			return sm.fail(ctx, flow, step, res.Err)
		}
		analytics.RecordStep(ctx, string(step.GetType()), "success")
		analytics.RecordStepSuccess(rec)
		sm.session.Attempts = 0

		if res.ShouldSuspend {
			sm.session.MoveTo(flow.Id, step.GetId(), model.SESSION_SUSPENDED, sm.engine.clock())
			if err := sm.save(ctx); err != nil {
				return err
			}
			logger.Debug("flow suspended", zap.String("flow", flow.Id), zap.String("step", step.GetId()), zap.String("conversationId", sm.session.ConversationId))
			return nil
		}

		if res.Nested != nil {
			if next := step.GetNext(); next != "" {
				if sm.session.Depth() >= sm.engine.conf.MaxFlowDepth {
					logger.Error("nested flow depth limit reached, ending session", zap.String("flow", flow.Id), zap.String("target", res.Nested.Id), zap.Int("limit", sm.engine.conf.MaxFlowDepth), zap.Error(ErrFlowDepth))
					sm.end(ctx, END_DEPTH_LIMIT)
					return errStop
				}
				sm.session.Push(model.Frame{FlowId: flow.Id, StepId: next})
			}
			logger.Info("entering nested flow", zap.String("flow", flow.Id), zap.String("target", res.Nested.Id), zap.Int("depth", sm.session.Depth()))
			entry, _ := res.Nested.EntryStep()
			flow, step = res.Nested, entry
			continue
		}

		if next := step.GetNext(); next != "" {
			nextStep, ok := flow.GetStep(next)
			if !ok {
				sm.engine.discardStale(ctx, sm.session, ErrStaleSession)
				return errStop
			}
			step = nextStep
			continue
		}

		var err error
		flow, step, err = sm.returnToCaller(ctx, flow)
		if err != nil {
			return err
		}
	}
}

// finish ends the current flow without executing anything else in it and
// continues in the caller when there is one.
func (sm *stateMachine) finish(ctx context.Context, flow *model.FlowDefinition) error {
	caller, step, err := sm.returnToCaller(ctx, flow)
	if err != nil {
		if errors.Is(err, errStop) {
			return nil
		}
		return err
	}
	return sm.run(ctx, caller, step)
}

// returnToCaller pops the top frame and returns the caller position. With
// no frame left the session is complete and errStop is returned.
func (sm *stateMachine) returnToCaller(ctx context.Context, flow *model.FlowDefinition) (*model.FlowDefinition, model.Step, error) {
	frame, ok := sm.session.Pop()
	if !ok {
		logger.Info("flow completed", zap.String("flow", flow.Id), zap.String("conversationId", sm.session.ConversationId))
		sm.end(ctx, END_COMPLETED)
		return nil, nil, errStop
	}
	caller, step, err := sm.engine.locate(ctx, frame.FlowId, frame.StepId)
	if err != nil {
		if errors.Is(err, ErrStaleSession) {
			sm.engine.discardStale(ctx, sm.session, err)
			return nil, nil, errStop
		}
		return nil, nil, err
	}
	logger.Info("returning to caller flow", zap.String("flow", flow.Id), zap.String("caller", caller.Id), zap.String("step", step.GetId()))
	return caller, step, nil
}

// fail parks the session on the failed step so the next inbound message
// runs it again. Once the step has failed more than MaxStepRetries times in
// a row the session is ended instead.
func (sm *stateMachine) fail(ctx context.Context, flow *model.FlowDefinition, step model.Step, cause error) error {
	sm.session.Attempts++
	logger.Error("step failed", zap.String("flow", flow.Id), zap.String("step", step.GetId()), zap.String("type", string(step.GetType())), zap.String("conversationId", sm.session.ConversationId), zap.Int("attempts", sm.session.Attempts), zap.Error(cause))
	if sm.session.Attempts > sm.engine.conf.MaxStepRetries {
		logger.Error("step retry limit reached, ending session", zap.String("flow", flow.Id), zap.String("step", step.GetId()), zap.String("conversationId", sm.session.ConversationId), zap.Int("limit", sm.engine.conf.MaxStepRetries), zap.Error(ErrRetryLimit))
		sm.sendFallback(ctx, step)
		sm.end(ctx, END_RETRY_LIMIT)
		return errStop
	}
	sm.session.MoveTo(flow.Id, step.GetId(), model.SESSION_RETRY, sm.engine.clock())
	if err := sm.save(ctx); err != nil {
		return err
	}
	sm.sendFallback(ctx, step)
	return errStop
}

func (sm *stateMachine) sendFallback(ctx context.Context, step model.Step) {
	text := sm.engine.conf.FallbackText
	if text == "" {
		return
	}
	if err := sm.engine.executor.SendText(ctx, sm.req, step.GetId(), text); err != nil {
		logger.Error("error sending fallback text", zap.String("conversationId", sm.session.ConversationId), zap.Error(err))
	}
}

func (sm *stateMachine) end(ctx context.Context, reason EndReason) {
	_ = sm.engine.stateHandler.GetHandler(reason)(ctx, sm.session)
}

// save stops the walk on a version conflict since another worker now owns
// the conversation. Other store failures are logged and the walk goes on
// without a persisted position.
func (sm *stateMachine) save(ctx context.Context) error {
	err := sm.engine.sessions.Put(ctx, sm.session, sm.engine.conf.SessionTTL)
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrVersionConflict) {
		logger.Warn("session changed concurrently, stopping", zap.String("ownerId", sm.session.OwnerId), zap.String("conversationId", sm.session.ConversationId), zap.Int64("version", sm.session.Version))
		return errStop
	}
	logger.Warn("session store unavailable, position not saved", zap.String("ownerId", sm.session.OwnerId), zap.String("conversationId", sm.session.ConversationId), zap.Error(err))
	analytics.RecordStoreFailOpen(ctx)
	return nil
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
