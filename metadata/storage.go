package metadata

import (
	"context"
	"errors"

	"github.com/avenping/flowengine/model"
)

var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrInvalidFlow  = errors.New("invalid flow")
)

// Storage is the flow document store as the engine sees it. Flows are
// returned in the store's natural enumeration order.
type Storage interface {
	GetFlowsForOwner(ctx context.Context, ownerId string, status model.FlowStatus) ([]*model.FlowDefinition, error)
	GetFlowById(ctx context.Context, flowId string) (*model.FlowDefinition, error)
}

// Writer is implemented by stores that can be loaded with documents.
type Writer interface {
	SaveFlow(ctx context.Context, flow *model.FlowDefinition) error
	DeleteFlow(ctx context.Context, flowId string) error
}

type ReadWriteStorage interface {
	Storage
	Writer
}
