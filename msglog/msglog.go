package msglog

import (
	"context"

	"github.com/avenping/flowengine/model"
)

// Log is the durable record of outbound messages the provider accepted.
// List returns a conversation's records oldest first, at most limit of the
// latest ones when limit > 0.
type Log interface {
	Record(ctx context.Context, rec model.OutboundRecord) error
	List(ctx context.Context, ownerId string, conversationId string, limit int) ([]model.OutboundRecord, error)
	Close() error
}
