package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"go.uber.org/zap"
)

var _ Action = new(nestedFlowAction)

type nestedFlowAction struct {
	baseAction
	invoke *model.NestedFlowInvoke
	flows  metadata.Storage
}

func NewNestedFlowAction(invoke *model.NestedFlowInvoke, flows metadata.Storage, bAction baseAction) *nestedFlowAction {
	return &nestedFlowAction{
		baseAction: bAction,
		invoke:     invoke,
		flows:      flows,
	}
}

// Execute resolves the target flow. Nothing is sent; the caller transfers
// control to Result.Nested. A target that is missing, inactive or has no
// entry step fails with ErrNestedFlowUnavailable.
func (n *nestedFlowAction) Execute(ctx context.Context, req Request) Result {
	logger.Debug("running nested flow step", zap.String("step", n.invoke.Id), zap.String("flow", req.FlowId), zap.String("target", n.invoke.TargetFlowId))
	if n.flows == nil {
		return failure(fmt.Errorf("%w: no flow storage", ErrNestedFlowUnavailable))
	}
	target, err := n.flows.GetFlowById(ctx, n.invoke.TargetFlowId)
	if err != nil {
		if errors.Is(err, metadata.ErrFlowNotFound) {
			return failure(fmt.Errorf("%w: %s: %w", ErrNestedFlowUnavailable, n.invoke.TargetFlowId, err))
		}
		// store outage, the step can succeed later
		return failure(err)
	}
	if !target.IsActive() {
		return failure(fmt.Errorf("%w: %s is %s", ErrNestedFlowUnavailable, target.Id, target.Status))
	}
	if _, ok := target.EntryStep(); !ok {
		return failure(fmt.Errorf("%w: %s has no entry step", ErrNestedFlowUnavailable, target.Id))
	}
	return Result{Success: true, Nested: target}
}
