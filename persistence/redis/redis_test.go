package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	"github.com/stretchr/testify/require"
)

func newTestDao(t *testing.T) (*miniredis.Miniredis, *BaseDao) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	dao := NewBaseDao(Config{Addrs: []string{server.Addr()}, Namespace: "test"})
	t.Cleanup(func() { _ = dao.Close() })
	return server, dao
}

func TestRedisSessionStore(t *testing.T) {
	server, dao := newTestDao(t)
	store := NewRedisSessionStore(dao)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	got, err := store.Get(ctx, "acc-1", "c1")
	require.NoError(t, err)
	require.Nil(t, got)

	s := model.NewFlowSession("acc-1", "c1", "WELCOME", "S1", now)
	s.Push(model.Frame{FlowId: "MAIN", StepId: "R1"})
	require.NoError(t, store.Put(ctx, s, time.Minute))
	require.Equal(t, int64(1), s.Version)
	require.True(t, server.Exists("test:SESSION:acc-1:c1"))

	got, err = store.Get(ctx, "acc-1", "c1")
	require.NoError(t, err)
	require.Equal(t, s, got)

	stale := got.Clone()
	s.MoveTo("WELCOME", "S2", model.SESSION_SUSPENDED, now)
	require.NoError(t, store.Put(ctx, s, time.Minute))
	require.Equal(t, int64(2), s.Version)
	require.ErrorIs(t, store.Put(ctx, stale, time.Minute), persistence.ErrVersionConflict)
	require.Equal(t, int64(1), stale.Version)

	require.NoError(t, store.Delete(ctx, "acc-1", "c1"))
	got, err = store.Get(ctx, "acc-1", "c1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisSessionDeleteIf(t *testing.T) {
	server, dao := newTestDao(t)
	store := NewRedisSessionStore(dao)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	absent := model.NewFlowSession("acc-1", "c1", "WELCOME", "S1", now)
	require.NoError(t, store.DeleteIf(ctx, absent))

	s := model.NewFlowSession("acc-1", "c1", "WELCOME", "S1", now)
	require.NoError(t, store.Put(ctx, s, time.Minute))
	ended := s.Clone()

	s.MoveTo("WELCOME", "S2", model.SESSION_SUSPENDED, now)
	require.NoError(t, store.Put(ctx, s, time.Minute))

	require.ErrorIs(t, store.DeleteIf(ctx, ended), persistence.ErrVersionConflict)
	require.True(t, server.Exists("test:SESSION:acc-1:c1"))

	require.NoError(t, store.DeleteIf(ctx, s))
	require.False(t, server.Exists("test:SESSION:acc-1:c1"))
}

func TestRedisSessionSlidingExpiry(t *testing.T) {
	server, dao := newTestDao(t)
	store := NewRedisSessionStore(dao)
	ctx := context.Background()

	s := model.NewFlowSession("acc-1", "c1", "WELCOME", "S1", time.Now())
	require.NoError(t, store.Put(ctx, s, 10*time.Minute))

	server.FastForward(6 * time.Minute)
	require.NoError(t, store.Put(ctx, s, 10*time.Minute))
	server.FastForward(6 * time.Minute)
	got, err := store.Get(ctx, "acc-1", "c1")
	require.NoError(t, err)
	require.NotNil(t, got)

	server.FastForward(5 * time.Minute)
	got, err = store.Get(ctx, "acc-1", "c1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisSessionStoreUnavailable(t *testing.T) {
	server, dao := newTestDao(t)
	store := NewRedisSessionStore(dao)
	server.Close()

	_, err := store.Get(context.Background(), "acc-1", "c1")
	require.Error(t, err)
	require.IsType(t, persistence.StorageLayerError{}, err)
}

func testFlow(id string, owner string, status model.FlowStatus) *model.FlowDefinition {
	return &model.FlowDefinition{
		Id:       id,
		OwnerId:  owner,
		Name:     id,
		Status:   status,
		Triggers: []string{id},
		Steps: []model.Step{
			&model.InteractiveMessage{Id: "S1", Body: "hello from " + id},
		},
	}
}

func TestRedisMetadataStorage(t *testing.T) {
	_, dao := newTestDao(t)
	store := NewRedisMetadataStorage(dao)
	ctx := context.Background()

	require.NoError(t, store.SaveFlow(ctx, testFlow("B", "acc-1", model.FLOW_STATUS_ACTIVE)))
	require.NoError(t, store.SaveFlow(ctx, testFlow("A", "acc-1", model.FLOW_STATUS_ACTIVE)))
	require.NoError(t, store.SaveFlow(ctx, testFlow("C", "acc-1", model.FLOW_STATUS_INACTIVE)))
	require.NoError(t, store.SaveFlow(ctx, testFlow("D", "acc-2", model.FLOW_STATUS_ACTIVE)))
	// re-saving keeps first insertion order
	require.NoError(t, store.SaveFlow(ctx, testFlow("B", "acc-1", model.FLOW_STATUS_ACTIVE)))

	flows, err := store.GetFlowsForOwner(ctx, "acc-1", model.FLOW_STATUS_ACTIVE)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	require.Equal(t, "B", flows[0].Id)
	require.Equal(t, "A", flows[1].Id)

	f, err := store.GetFlowById(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, testFlow("A", "acc-1", model.FLOW_STATUS_ACTIVE), f)

	_, err = store.GetFlowById(ctx, "Z")
	require.ErrorIs(t, err, metadata.ErrFlowNotFound)

	require.NoError(t, store.DeleteFlow(ctx, "B"))
	flows, err = store.GetFlowsForOwner(ctx, "acc-1", model.FLOW_STATUS_ACTIVE)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	require.ErrorIs(t, store.DeleteFlow(ctx, "B"), metadata.ErrFlowNotFound)

	require.ErrorIs(t, store.SaveFlow(ctx, &model.FlowDefinition{Id: "bad"}), metadata.ErrInvalidFlow)

	none, err := store.GetFlowsForOwner(ctx, "acc-9", model.FLOW_STATUS_ACTIVE)
	require.NoError(t, err)
	require.Empty(t, none)
}
