package redis

import (
	"context"
	"errors"
	"time"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"github.com/avenping/flowengine/util"
	rd "github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var _ persistence.SessionStore = new(redisSessionStore)

type redisSessionStore struct {
	*BaseDao
	encoderDecoder util.EncoderDecoder[model.FlowSession]
}

func NewRedisSessionStore(baseDao *BaseDao) *redisSessionStore {
	return &redisSessionStore{
		BaseDao:        baseDao,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowSession](),
	}
}

func (r *redisSessionStore) sessionKey(ownerId string, conversationId string) string {
	return r.getNamespaceKey(persistence.SESSION_KEY, ownerId, conversationId)
}

func (r *redisSessionStore) Get(ctx context.Context, ownerId string, conversationId string) (*model.FlowSession, error) {
	val, err := r.redisClient.Get(ctx, r.sessionKey(ownerId, conversationId)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	session, err := r.encoderDecoder.Decode([]byte(val))
	if err != nil {
		logger.Error("error decoding session", zap.String("ownerId", ownerId), zap.String("conversationId", conversationId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return session, nil
}

func (r *redisSessionStore) Put(ctx context.Context, session *model.FlowSession, ttl time.Duration) error {
	key := r.sessionKey(session.OwnerId, session.ConversationId)
	next := session.Clone()
	next.Version = session.Version + 1
	data, err := r.encoderDecoder.Encode(*next)
	if err != nil {
		return err
	}

	txf := func(tx *rd.Tx) error {
		var stored int64
		val, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, rd.Nil):
		case err != nil:
			return err
		default:
			stored = gjson.Get(val, "version").Int()
		}
		if stored != session.Version {
			return persistence.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	err = r.redisClient.Watch(ctx, txf, key)
	if errors.Is(err, persistence.ErrVersionConflict) || errors.Is(err, rd.TxFailedErr) {
		return persistence.ErrVersionConflict
	}
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	session.Version = next.Version
	return nil
}

func (r *redisSessionStore) DeleteIf(ctx context.Context, session *model.FlowSession) error {
	key := r.sessionKey(session.OwnerId, session.ConversationId)
	txf := func(tx *rd.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, rd.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if gjson.Get(val, "version").Int() != session.Version {
			return persistence.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	err := r.redisClient.Watch(ctx, txf, key)
	if errors.Is(err, persistence.ErrVersionConflict) || errors.Is(err, rd.TxFailedErr) {
		return persistence.ErrVersionConflict
	}
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisSessionStore) Delete(ctx context.Context, ownerId string, conversationId string) error {
	if err := r.redisClient.Del(ctx, r.sessionKey(ownerId, conversationId)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
