package agent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/avenping/flowengine/config"
	"github.com/avenping/flowengine/model"
	"github.com/stretchr/testify/require"
)

const menuYAML = `
- id: MENU
  ownerId: acc-1
  name: Menu
  status: ACTIVE
  triggers: [menu]
  steps:
    - id: pick
      type: interactive
      body: Pick one
      options:
        - label: Docs
          next: docs
    - id: docs
      type: media
      kind: document
      mediaRef: https://cdn.example.com/guide.pdf
      caption: The guide
`

// syncBuffer guards the transcript written by the worker goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "menu.yaml"), []byte(menuYAML), 0644))
	conf := config.NewDefaultConfig()
	conf.StorageType = config.STORAGE_TYPE_INMEM
	conf.MessageLog.Type = config.MESSAGE_LOG_INMEM
	conf.FlowSource.Dir = dir
	conf.Dispatcher.WorkerCount = 2
	conf.Dispatcher.PartitionCount = 7
	conf.HttpPort = 0
	return conf
}

func TestLocalAgentConversation(t *testing.T) {
	out := &syncBuffer{}
	a, err := NewLocal(testConfig(t), out)
	require.NoError(t, err)
	require.NoError(t, a.Start())

	ctx := context.Background()
	msg := model.InboundMessage{OwnerId: "acc-1", ConversationId: "c1", ChannelId: "ch", Text: "menu"}
	require.NoError(t, a.Process(ctx, msg))
	msg.Text = "Docs"
	require.NoError(t, a.Process(ctx, msg))

	require.Contains(t, out.String(), "[c1] Pick one [Docs]")
	require.Contains(t, out.String(), "[c1] <document https://cdn.example.com/guide.pdf> The guide")

	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
	select {
	case <-a.Done():
	default:
		t.Fatal("done channel should be closed after shutdown")
	}
}

func TestAgentWithHttpServer(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Start())
	require.NoError(t, a.Shutdown())
}

func TestAgentRejectsInvalidConfig(t *testing.T) {
	conf := testConfig(t)
	conf.Dispatcher.PartitionCount = 1
	_, err := NewLocal(conf, nil)
	require.ErrorIs(t, err, config.ErrInvalidPartitions)
}
