package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/avenping/flowengine/model"
)

var ErrTooManyOptions = errors.New("too many reply options")
var ErrNoMessageId = errors.New("provider response carries no message id")

// SendError is a send the provider rejected.
type SendError struct {
	StatusCode int
	Message    string
}

func (e SendError) Error() string {
	return fmt.Sprintf("send failed with status %d: %s", e.StatusCode, e.Message)
}

// Gateway sends messages on behalf of a channel. Every method returns the
// provider message id of the accepted message.
type Gateway interface {
	SendText(ctx context.Context, channelId string, to string, body string) (string, error)
	SendMedia(ctx context.Context, channelId string, to string, kind model.MediaKind, ref string, caption string) (string, error)
	SendInteractive(ctx context.Context, channelId string, to string, header string, body string, options []string) (string, error)
	SendTemplate(ctx context.Context, channelId string, to string, template string, language string, params []string) (string, error)
}

type Contact struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
}

// ContactDirectory resolves the person behind a conversation. Lookup
// returns nil, nil for unknown conversations.
type ContactDirectory interface {
	Lookup(ctx context.Context, ownerId string, conversationId string) (*Contact, error)
}
