package action

import (
	"context"
	"errors"

	"github.com/avenping/flowengine/gateway"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"go.uber.org/zap"
)

var ErrNoTemplate = errors.New("no support template configured")

var _ Action = new(supportAction)

type supportAction struct {
	baseAction
	escalation *model.SupportEscalation
	contacts   gateway.ContactDirectory
	templates  SupportTemplates
}

func NewSupportAction(escalation *model.SupportEscalation, contacts gateway.ContactDirectory, templates SupportTemplates, bAction baseAction) *supportAction {
	return &supportAction{
		baseAction: bAction,
		escalation: escalation,
		contacts:   contacts,
		templates:  templates,
	}
}

// Execute notifies the agent number with a template carrying the contact's
// display name and phone. The conversation itself gets no message.
func (s *supportAction) Execute(ctx context.Context, req Request) Result {
	logger.Debug("running support step", zap.String("step", s.escalation.Id), zap.String("flow", req.FlowId), zap.String("kind", string(s.escalation.Kind)))
	name := s.templates.For(s.escalation.Kind)
	if name == "" {
		return failure(ErrNoTemplate)
	}
	contact, err := gateway.ResolveContact(ctx, s.contacts, req.OwnerId, req.ConversationId)
	if err != nil {
		logger.Warn("contact lookup failed, using conversation id", zap.String("conversationId", req.ConversationId), zap.Error(err))
	}
	params := []string{contact.DisplayName, contact.Phone}
	if err := s.sender.template(ctx, req, s.escalation.Id, s.escalation.AgentPhone, name, s.templates.Language, params); err != nil {
		return failure(err)
	}
	return success()
}
