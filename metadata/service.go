package metadata

import (
	"context"
	"time"

	"github.com/avenping/flowengine/model"
	c "github.com/patrickmn/go-cache"
)

var _ Storage = new(Service)

// Service fronts a Storage with a short-lived read cache. Misses and errors
// are never cached.
type Service struct {
	storage Storage
	ttl     time.Duration
	cache   *c.Cache
}

func NewService(storage Storage, ttl time.Duration) *Service {
	return &Service{
		storage: storage,
		ttl:     ttl,
		cache:   c.New(ttl, 2*ttl),
	}
}

func (s *Service) GetFlowsForOwner(ctx context.Context, ownerId string, status model.FlowStatus) ([]*model.FlowDefinition, error) {
	if s.ttl <= 0 {
		return s.storage.GetFlowsForOwner(ctx, ownerId, status)
	}
	key := "owner:" + ownerId + ":" + string(status)
	if v, found := s.cache.Get(key); found {
		return v.([]*model.FlowDefinition), nil
	}
	flows, err := s.storage.GetFlowsForOwner(ctx, ownerId, status)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, flows, c.DefaultExpiration)
	return flows, nil
}

func (s *Service) GetFlowById(ctx context.Context, flowId string) (*model.FlowDefinition, error) {
	if s.ttl <= 0 {
		return s.storage.GetFlowById(ctx, flowId)
	}
	key := "flow:" + flowId
	if v, found := s.cache.Get(key); found {
		return v.(*model.FlowDefinition), nil
	}
	flow, err := s.storage.GetFlowById(ctx, flowId)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, flow, c.DefaultExpiration)
	return flow, nil
}

func (s *Service) Invalidate() {
	s.cache.Flush()
}

func (s *Service) Storage() Storage {
	return s.storage
}
