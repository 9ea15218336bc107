package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avenping/flowengine/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// ErrVersionConflict is returned by Put and DeleteIf when the stored
// session version differs from the one the caller read.
var ErrVersionConflict = errors.New("session version conflict")

const SESSION_KEY string = "SESSION"

// SessionStore holds at most one FlowSession per (owner, conversation).
//
// Put is a compare-and-swap on session.Version: a version of 0 means the
// session must not exist yet. On success the version on the passed session
// is incremented and the entry expires ttl after this write.
//
// DeleteIf removes the session only while the stored version still equals
// session.Version. Deleting an absent session is not an error. Delete
// removes unconditionally.
type SessionStore interface {
	Get(ctx context.Context, ownerId string, conversationId string) (*model.FlowSession, error)
	Put(ctx context.Context, session *model.FlowSession, ttl time.Duration) error
	DeleteIf(ctx context.Context, session *model.FlowSession) error
	Delete(ctx context.Context, ownerId string, conversationId string) error
}
