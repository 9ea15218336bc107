package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/util"
	"github.com/stretchr/testify/require"
)

func TestRingAssignsEveryPartition(t *testing.T) {
	names := []string{WorkerName(0), WorkerName(1), WorkerName(2)}
	r := NewRing(RingConfig{PartitionCount: 71}, names...)

	total := 0
	for _, n := range names {
		total += len(r.GetPartitions(n))
	}
	require.Equal(t, 71, total)

	owner := r.GetOwner("acc-1:15551234")
	require.Contains(t, names, owner)
	for i := 0; i < 10; i++ {
		require.Equal(t, owner, r.GetOwner("acc-1:15551234"))
	}
}

func TestRingWithoutMembers(t *testing.T) {
	r := NewRing(RingConfig{PartitionCount: 7})
	require.Equal(t, "", r.GetOwner("k"))
	r.Join("solo")
	require.Equal(t, "solo", r.GetOwner("k"))
	require.Len(t, r.GetPartitions("solo"), 7)
}

type recordingProcessor struct {
	mu      sync.Mutex
	active  map[string]int
	seen    map[string][]string
	overlap bool
	wg      sync.WaitGroup
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{active: make(map[string]int), seen: make(map[string][]string)}
}

func (p *recordingProcessor) ProcessInboundMessage(ctx context.Context, msg model.InboundMessage) error {
	defer p.wg.Done()
	key := msg.ConversationKey()
	p.mu.Lock()
	p.active[key]++
	if p.active[key] > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.active[key]--
	p.seen[key] = append(p.seen[key], msg.Text)
	p.mu.Unlock()
	if msg.Text == "fail" {
		return errors.New("processing failed")
	}
	return nil
}

func TestDispatcherSerializesConversations(t *testing.T) {
	var wg sync.WaitGroup
	p := newRecordingProcessor()
	d := NewDispatcher(DispatcherConfig{PartitionCount: 31, WorkerCount: 4, WorkerCapacity: 16, TaskTimeout: time.Second}, p, &wg)
	d.Start()

	const conversations = 6
	const perConversation = 10
	p.wg.Add(conversations * perConversation)
	var submitters sync.WaitGroup
	for c := 0; c < conversations; c++ {
		submitters.Add(1)
		go func(c int) {
			defer submitters.Done()
			for i := 0; i < perConversation; i++ {
				msg := model.InboundMessage{OwnerId: "acc-1", ConversationId: fmt.Sprintf("conv-%d", c), Text: fmt.Sprintf("%d", i)}
				if err := d.Submit(context.Background(), msg); err != nil {
					t.Error(err)
				}
			}
		}(c)
	}
	submitters.Wait()
	p.wg.Wait()
	d.Stop()
	wg.Wait()

	require.False(t, p.overlap)
	for c := 0; c < conversations; c++ {
		got := p.seen[fmt.Sprintf("acc-1:conv-%d", c)]
		require.Len(t, got, perConversation)
		for i, text := range got {
			require.Equal(t, fmt.Sprintf("%d", i), text)
		}
	}
}

func TestDispatcherProcessWaitsForResult(t *testing.T) {
	var wg sync.WaitGroup
	p := newRecordingProcessor()
	d := NewDispatcher(DispatcherConfig{PartitionCount: 7, WorkerCount: 1, WorkerCapacity: 1}, p, &wg)
	d.Start()
	defer func() {
		d.Stop()
		wg.Wait()
	}()

	p.wg.Add(2)
	require.NoError(t, d.Process(context.Background(), model.InboundMessage{OwnerId: "a", ConversationId: "c", Text: "ok"}))
	require.Error(t, d.Process(context.Background(), model.InboundMessage{OwnerId: "a", ConversationId: "c", Text: "fail"}))
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	var wg sync.WaitGroup
	d := NewDispatcher(DispatcherConfig{PartitionCount: 7, WorkerCount: 1, WorkerCapacity: 1}, newRecordingProcessor(), &wg)
	d.Start()
	d.Stop()
	wg.Wait()
	require.Error(t, d.Submit(context.Background(), model.InboundMessage{OwnerId: "a", ConversationId: "c"}))
}

type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingProcessor) ProcessInboundMessage(ctx context.Context, msg model.InboundMessage) error {
	p.started <- struct{}{}
	<-p.release
	return nil
}

func TestDispatcherProcessFailsQueuedMessageOnStop(t *testing.T) {
	var wg sync.WaitGroup
	p := &blockingProcessor{started: make(chan struct{}, 2), release: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{PartitionCount: 7, WorkerCount: 1, WorkerCapacity: 4}, p, &wg)
	d.Start()

	first := make(chan error, 1)
	second := make(chan error, 1)
	go func() {
		first <- d.Process(context.Background(), model.InboundMessage{OwnerId: "a", ConversationId: "c", Text: "one"})
	}()
	<-p.started
	go func() {
		second <- d.Process(context.Background(), model.InboundMessage{OwnerId: "a", ConversationId: "c", Text: "two"})
	}()
	// let the second message reach the queue behind the first
	time.Sleep(20 * time.Millisecond)

	d.Stop()
	close(p.release)

	for name, results := range map[string]chan error{"in flight": first, "queued": second} {
		select {
		case err := <-results:
			if name == "queued" {
				require.ErrorIs(t, err, util.ErrWorkerStopped)
			} else {
				require.NoError(t, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s message never returned", name)
		}
	}
	wg.Wait()
}
