package msglog

import (
	"context"
	"sync"

	"github.com/avenping/flowengine/model"
)

var _ Log = new(memoryLog)

type memoryLog struct {
	mu      sync.RWMutex
	records []model.OutboundRecord
}

func NewMemoryLog() *memoryLog {
	return &memoryLog{}
}

func (m *memoryLog) Record(ctx context.Context, rec model.OutboundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryLog) List(ctx context.Context, ownerId string, conversationId string, limit int) ([]model.OutboundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.OutboundRecord
	for _, r := range m.records {
		if r.OwnerId == ownerId && r.ConversationId == conversationId {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryLog) Close() error {
	return nil
}
