package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"github.com/patrickmn/go-cache"
)

var _ persistence.SessionStore = new(memorySessionStore)

// memorySessionStore keeps sessions in a go-cache with a per-item expiry.
// The mutex makes the version check and the write one step.
type memorySessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemorySessionStore(cleanupInterval time.Duration) *memorySessionStore {
	return &memorySessionStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func sessionKey(ownerId string, conversationId string) string {
	return persistence.SESSION_KEY + ":" + ownerId + ":" + conversationId
}

func (m *memorySessionStore) Get(ctx context.Context, ownerId string, conversationId string) (*model.FlowSession, error) {
	v, ok := m.cache.Get(sessionKey(ownerId, conversationId))
	if !ok {
		return nil, nil
	}
	return v.(*model.FlowSession).Clone(), nil
}

func (m *memorySessionStore) Put(ctx context.Context, session *model.FlowSession, ttl time.Duration) error {
	key := sessionKey(session.OwnerId, session.ConversationId)
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored int64
	if v, ok := m.cache.Get(key); ok {
		stored = v.(*model.FlowSession).Version
	}
	if stored != session.Version {
		return persistence.ErrVersionConflict
	}
	next := session.Clone()
	next.Version++
	m.cache.Set(key, next, ttl)
	session.Version = next.Version
	return nil
}

func (m *memorySessionStore) DeleteIf(ctx context.Context, session *model.FlowSession) error {
	key := sessionKey(session.OwnerId, session.ConversationId)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache.Get(key)
	if !ok {
		return nil
	}
	if v.(*model.FlowSession).Version != session.Version {
		return persistence.ErrVersionConflict
	}
	m.cache.Delete(key)
	return nil
}

func (m *memorySessionStore) Delete(ctx context.Context, ownerId string, conversationId string) error {
	m.cache.Delete(sessionKey(ownerId, conversationId))
	return nil
}

