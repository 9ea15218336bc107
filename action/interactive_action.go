package action

import (
	"context"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"go.uber.org/zap"
)

var _ Action = new(interactiveAction)

type interactiveAction struct {
	baseAction
	message *model.InteractiveMessage
}

func NewInteractiveAction(message *model.InteractiveMessage, bAction baseAction) *interactiveAction {
	return &interactiveAction{
		baseAction: bAction,
		message:    message,
	}
}

// Execute sends a plain text when the message has no options. With options
// the flow suspends until the user picks one.
func (i *interactiveAction) Execute(ctx context.Context, req Request) Result {
	logger.Debug("running interactive step", zap.String("step", i.message.Id), zap.String("flow", req.FlowId), zap.String("conversationId", req.ConversationId))
	if !i.message.HasOptions() {
		if err := i.sender.text(ctx, req, i.message.Id, i.message.Body); err != nil {
			return failure(err)
		}
		return success()
	}
	if err := i.sender.interactive(ctx, req, i.message.Id, i.message.Header, i.message.Body, i.message.Labels()); err != nil {
		return failure(err)
	}
	return Result{Success: true, ShouldSuspend: true}
}
