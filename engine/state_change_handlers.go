package engine

import (
	"context"
	"errors"

	"github.com/avenping/flowengine/analytics"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"go.uber.org/zap"
)

var ErrStaleSession = errors.New("session points to a missing flow or step")
var ErrStepLimit = errors.New("auto step limit reached")
var ErrFlowDepth = errors.New("nested flow depth limit reached")
var ErrRetryLimit = errors.New("step retry limit reached")

type EndReason string

const END_COMPLETED EndReason = "completed"
const END_STALE EndReason = "stale"
const END_STEP_LIMIT EndReason = "step_limit"
const END_DEPTH_LIMIT EndReason = "depth_limit"
const END_RETRY_LIMIT EndReason = "retry_limit"

// StateHandlerContainer maps the ways a session can end to the handler
// that removes it. Removal is conditional on the session version, so a
// session rewritten by another worker survives.
type StateHandlerContainer struct {
	handlers map[EndReason]func(ctx context.Context, session *model.FlowSession) error
	sessions persistence.SessionStore
}

func NewStateHandlerContainer(sessions persistence.SessionStore) *StateHandlerContainer {
	hd := &StateHandlerContainer{
		sessions: sessions,
		handlers: make(map[EndReason]func(ctx context.Context, session *model.FlowSession) error, 5),
	}
	hd.handlers[END_COMPLETED] = hd.deleteWith(END_COMPLETED)
	hd.handlers[END_STALE] = hd.deleteWith(END_STALE)
	hd.handlers[END_STEP_LIMIT] = hd.deleteWith(END_STEP_LIMIT)
	hd.handlers[END_DEPTH_LIMIT] = hd.deleteWith(END_DEPTH_LIMIT)
	hd.handlers[END_RETRY_LIMIT] = hd.deleteWith(END_RETRY_LIMIT)
	return hd
}

func (s *StateHandlerContainer) GetHandler(reason EndReason) func(ctx context.Context, session *model.FlowSession) error {
	handler, ok := s.handlers[reason]
	if ok {
		return handler
	}
	return func(ctx context.Context, session *model.FlowSession) error {
		logger.Warn("no handler for end reason, session kept", zap.String("reason", string(reason)), zap.String("ownerId", session.OwnerId), zap.String("conversationId", session.ConversationId))
		return nil
	}
}

func (s *StateHandlerContainer) deleteWith(reason EndReason) func(ctx context.Context, session *model.FlowSession) error {
	return func(ctx context.Context, session *model.FlowSession) error {
		analytics.RecordFlowFinished(session.OwnerId, session.ConversationId, session.FlowId, string(reason))
		analytics.RecordSessionEnded(ctx, string(reason))
		err := s.sessions.DeleteIf(ctx, session)
		if errors.Is(err, persistence.ErrVersionConflict) {
			logger.Warn("session changed concurrently, not deleting", zap.String("ownerId", session.OwnerId), zap.String("conversationId", session.ConversationId), zap.String("reason", string(reason)), zap.Int64("version", session.Version))
			return err
		}
		if err != nil {
			logger.Error("error deleting session", zap.String("ownerId", session.OwnerId), zap.String("conversationId", session.ConversationId), zap.String("reason", string(reason)), zap.Error(err))
			return err
		}
		return nil
	}
}
