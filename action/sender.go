package action

import (
	"context"
	"strings"
	"time"

	"github.com/avenping/flowengine/gateway"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/msglog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sender performs a gateway send and writes the accepted message to the
// message log. A log write failure never fails the send.
type sender struct {
	gateway gateway.Gateway
	log     msglog.Log
	clock   func() time.Time
}

func (s *sender) text(ctx context.Context, req Request, stepId string, body string) error {
	id, err := s.gateway.SendText(ctx, req.ChannelId, req.ConversationId, body)
	if err != nil {
		return err
	}
	s.record(ctx, req, stepId, req.ConversationId, model.OUTBOUND_TEXT, body, id)
	return nil
}

func (s *sender) media(ctx context.Context, req Request, stepId string, kind model.MediaKind, ref string, caption string) error {
	id, err := s.gateway.SendMedia(ctx, req.ChannelId, req.ConversationId, kind, ref, caption)
	if err != nil {
		return err
	}
	s.record(ctx, req, stepId, req.ConversationId, model.OUTBOUND_MEDIA, ref, id)
	return nil
}

func (s *sender) interactive(ctx context.Context, req Request, stepId string, header string, body string, options []string) error {
	id, err := s.gateway.SendInteractive(ctx, req.ChannelId, req.ConversationId, header, body, options)
	if err != nil {
		return err
	}
	s.record(ctx, req, stepId, req.ConversationId, model.OUTBOUND_INTERACTIVE, body+" ["+strings.Join(options, "|")+"]", id)
	return nil
}

func (s *sender) template(ctx context.Context, req Request, stepId string, to string, name string, language string, params []string) error {
	id, err := s.gateway.SendTemplate(ctx, req.ChannelId, to, name, language, params)
	if err != nil {
		return err
	}
	s.record(ctx, req, stepId, to, model.OUTBOUND_TEMPLATE, name+"("+strings.Join(params, ",")+")", id)
	return nil
}

func (s *sender) record(ctx context.Context, req Request, stepId string, to string, kind model.OutboundKind, body string, providerId string) {
	if s.log == nil {
		return
	}
	rec := model.OutboundRecord{
		Id:                uuid.NewString(),
		ProviderMessageId: providerId,
		OwnerId:           req.OwnerId,
		ConversationId:    req.ConversationId,
		ChannelId:         req.ChannelId,
		Recipient:         to,
		Kind:              kind,
		Body:              body,
		FlowId:            req.FlowId,
		StepId:            stepId,
		CreatedAt:         s.clock().UTC(),
	}
	if err := s.log.Record(ctx, rec); err != nil {
		logger.Error("error writing message log", zap.String("conversationId", req.ConversationId), zap.String("providerMessageId", providerId), zap.Error(err))
	}
}
