package metadata

import (
	"context"
	"sync"

	"github.com/avenping/flowengine/model"
)

var _ ReadWriteStorage = new(MemoryStorage)

// MemoryStorage keeps flows in insertion order, which is its enumeration
// order.
type MemoryStorage struct {
	mu    sync.RWMutex
	order []string
	flows map[string]*model.FlowDefinition
}

func NewMemoryStorage(flows ...*model.FlowDefinition) *MemoryStorage {
	s := &MemoryStorage{flows: make(map[string]*model.FlowDefinition)}
	for _, f := range flows {
		s.put(f)
	}
	return s
}

func (s *MemoryStorage) put(flow *model.FlowDefinition) {
	if _, ok := s.flows[flow.Id]; !ok {
		s.order = append(s.order, flow.Id)
	}
	s.flows[flow.Id] = flow
}

func (s *MemoryStorage) SaveFlow(ctx context.Context, flow *model.FlowDefinition) error {
	if err := Validate(flow); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(flow)
	return nil
}

func (s *MemoryStorage) DeleteFlow(ctx context.Context, flowId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[flowId]; !ok {
		return ErrFlowNotFound
	}
	delete(s.flows, flowId)
	for i, id := range s.order {
		if id == flowId {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Replace swaps the whole content atomically.
func (s *MemoryStorage) Replace(flows []*model.FlowDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.flows = make(map[string]*model.FlowDefinition, len(flows))
	for _, f := range flows {
		s.put(f)
	}
}

func (s *MemoryStorage) GetFlowsForOwner(ctx context.Context, ownerId string, status model.FlowStatus) ([]*model.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.FlowDefinition
	for _, id := range s.order {
		f := s.flows[id]
		if f.OwnerId == ownerId && f.Status == status {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemoryStorage) GetFlowById(ctx context.Context, flowId string) (*model.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[flowId]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return f, nil
}
