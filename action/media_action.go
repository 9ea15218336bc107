package action

import (
	"context"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"go.uber.org/zap"
)

var _ Action = new(mediaAction)

type mediaAction struct {
	baseAction
	media *model.MediaMessage
}

func NewMediaAction(media *model.MediaMessage, bAction baseAction) *mediaAction {
	return &mediaAction{
		baseAction: bAction,
		media:      media,
	}
}

func (m *mediaAction) Execute(ctx context.Context, req Request) Result {
	logger.Debug("running media step", zap.String("step", m.media.Id), zap.String("flow", req.FlowId), zap.String("conversationId", req.ConversationId))
	if err := m.sender.media(ctx, req, m.media.Id, m.media.Kind, m.media.MediaRef, m.media.Caption); err != nil {
		return failure(err)
	}
	return success()
}
