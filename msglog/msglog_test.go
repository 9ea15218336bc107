package msglog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/avenping/flowengine/model"
	"github.com/stretchr/testify/require"
)

func record(i int, conv string) model.OutboundRecord {
	return model.OutboundRecord{
		Id:                fmt.Sprintf("rec-%s-%d", conv, i),
		ProviderMessageId: fmt.Sprintf("wamid-%d", i),
		OwnerId:           "acc-1",
		ConversationId:    conv,
		ChannelId:         "chan-1",
		Recipient:         conv,
		Kind:              model.OUTBOUND_TEXT,
		Body:              fmt.Sprintf("message %d", i),
		FlowId:            "WELCOME",
		StepId:            "S1",
		CreatedAt:         time.UnixMilli(1700000000000 + int64(i)).UTC(),
	}
}

func TestLogs(t *testing.T) {
	sqlite, err := NewSqliteLog(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	for name, log := range map[string]Log{
		"memory": NewMemoryLog(),
		"sqlite": sqlite,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				require.NoError(t, log.Record(ctx, record(i, "c1")))
			}
			require.NoError(t, log.Record(ctx, record(0, "c2")))

			all, err := log.List(ctx, "acc-1", "c1", 0)
			require.NoError(t, err)
			require.Len(t, all, 5)
			require.Equal(t, record(0, "c1"), all[0])
			require.Equal(t, record(4, "c1"), all[4])

			latest, err := log.List(ctx, "acc-1", "c1", 2)
			require.NoError(t, err)
			require.Equal(t, []model.OutboundRecord{record(3, "c1"), record(4, "c1")}, latest)

			none, err := log.List(ctx, "acc-2", "c1", 0)
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func TestSqliteLogPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.db")
	log, err := NewSqliteLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Record(context.Background(), record(1, "c1")))
	require.NoError(t, log.Close())

	reopened, err := NewSqliteLog(path)
	require.NoError(t, err)
	defer reopened.Close()
	recs, err := reopened.List(context.Background(), "acc-1", "c1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.Error(t, reopened.Record(context.Background(), record(1, "c1")))
}
