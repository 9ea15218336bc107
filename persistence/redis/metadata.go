package redis

import (
	"context"
	"errors"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"github.com/avenping/flowengine/util"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const FLOW_DEF string = "FLOW"
const FLOW_ORDER string = "FLOW_ORDER"
const FLOW_SEQ string = "FLOW_SEQ"

var _ metadata.ReadWriteStorage = new(redisMetadataStorage)

// redisMetadataStorage keeps flow documents in one hash and a per-owner
// sorted set whose scores record first insertion order.
type redisMetadataStorage struct {
	*BaseDao
	flowEncoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewRedisMetadataStorage(baseDao *BaseDao) *redisMetadataStorage {
	return &redisMetadataStorage{
		BaseDao:            baseDao,
		flowEncoderDecoder: util.NewJsonEncoderDecoder[model.FlowDefinition](),
	}
}

func (rfd *redisMetadataStorage) SaveFlow(ctx context.Context, flow *model.FlowDefinition) error {
	if err := metadata.Validate(flow); err != nil {
		return err
	}
	data, err := rfd.flowEncoderDecoder.Encode(*flow)
	if err != nil {
		return err
	}
	key := rfd.getNamespaceKey(FLOW_DEF)
	previous, err := rfd.getFlow(ctx, flow.Id)
	if err != nil && !errors.Is(err, metadata.ErrFlowNotFound) {
		return err
	}
	seq, err := rfd.redisClient.Incr(ctx, rfd.getNamespaceKey(FLOW_SEQ)).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	_, err = rfd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		if previous != nil && previous.OwnerId != flow.OwnerId {
			pipe.ZRem(ctx, rfd.getNamespaceKey(FLOW_ORDER, previous.OwnerId), flow.Id)
		}
		pipe.HSet(ctx, key, flow.Id, string(data))
		pipe.ZAddNX(ctx, rfd.getNamespaceKey(FLOW_ORDER, flow.OwnerId), rd.Z{Score: float64(seq), Member: flow.Id})
		return nil
	})
	if err != nil {
		logger.Error("error in saving flow definition", zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rfd *redisMetadataStorage) DeleteFlow(ctx context.Context, flowId string) error {
	flow, err := rfd.getFlow(ctx, flowId)
	if err != nil {
		return err
	}
	_, err = rfd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HDel(ctx, rfd.getNamespaceKey(FLOW_DEF), flowId)
		pipe.ZRem(ctx, rfd.getNamespaceKey(FLOW_ORDER, flow.OwnerId), flowId)
		return nil
	})
	if err != nil {
		logger.Error("error in deleting flow definition", zap.String("flowId", flowId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rfd *redisMetadataStorage) GetFlowById(ctx context.Context, flowId string) (*model.FlowDefinition, error) {
	return rfd.getFlow(ctx, flowId)
}

func (rfd *redisMetadataStorage) GetFlowsForOwner(ctx context.Context, ownerId string, status model.FlowStatus) ([]*model.FlowDefinition, error) {
	ids, err := rfd.redisClient.ZRange(ctx, rfd.getNamespaceKey(FLOW_ORDER, ownerId), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := rfd.redisClient.HMGet(ctx, rfd.getNamespaceKey(FLOW_DEF), ids...).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var flows []*model.FlowDefinition
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			logger.Warn("flow listed for owner but missing", zap.String("ownerId", ownerId), zap.String("flowId", ids[i]))
			continue
		}
		flow, err := rfd.flowEncoderDecoder.Decode([]byte(str))
		if err != nil {
			logger.Error("error decoding flow definition", zap.String("flowId", ids[i]), zap.Error(err))
			continue
		}
		if flow.Status == status {
			flows = append(flows, flow)
		}
	}
	return flows, nil
}

func (rfd *redisMetadataStorage) getFlow(ctx context.Context, flowId string) (*model.FlowDefinition, error) {
	val, err := rfd.redisClient.HGet(ctx, rfd.getNamespaceKey(FLOW_DEF), flowId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, metadata.ErrFlowNotFound
		}
		logger.Error("error in getting flow definition", zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rfd.flowEncoderDecoder.Decode([]byte(val))
}
