package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/util"
	"go.uber.org/zap"
)

var ErrNoWorker = errors.New("no worker owns the partition")

type Processor interface {
	ProcessInboundMessage(ctx context.Context, msg model.InboundMessage) error
}

type DispatcherConfig struct {
	PartitionCount int
	WorkerCount    int
	WorkerCapacity int
	TaskTimeout    time.Duration
}

type inboundTask struct {
	msg  model.InboundMessage
	done chan error
}

// Dispatcher routes every inbound message to the single worker owning the
// conversation's partition, so messages of one conversation are handled
// one at a time in submission order.
type Dispatcher struct {
	conf      DispatcherConfig
	ring      *Ring
	processor Processor
	workers   map[string]*util.Worker
}

func NewDispatcher(conf DispatcherConfig, processor Processor, wg *sync.WaitGroup) *Dispatcher {
	names := make([]string, 0, conf.WorkerCount)
	for i := 0; i < conf.WorkerCount; i++ {
		names = append(names, WorkerName(i))
	}
	d := &Dispatcher{
		conf:      conf,
		ring:      NewRing(RingConfig{PartitionCount: conf.PartitionCount}, names...),
		processor: processor,
		workers:   make(map[string]*util.Worker, len(names)),
	}
	for _, name := range names {
		w := util.NewWorker(name, wg, d.handle, conf.WorkerCapacity)
		w.OnDrop(d.drop)
		d.workers[name] = w
	}
	return d
}

func (d *Dispatcher) Start() {
	for _, w := range d.workers {
		w.Start()
	}
	logger.Info("dispatcher started", zap.Int("workers", len(d.workers)), zap.Int("partitions", d.conf.PartitionCount))
}

func (d *Dispatcher) Stop() {
	for _, w := range d.workers {
		w.Stop()
	}
}

func (d *Dispatcher) Ring() *Ring {
	return d.ring
}

// Submit queues the message and returns once it is accepted.
func (d *Dispatcher) Submit(ctx context.Context, msg model.InboundMessage) error {
	_, err := d.submit(ctx, inboundTask{msg: msg})
	return err
}

// Process queues the message and waits for it to be handled. A message
// still queued when its worker stops fails with util.ErrWorkerStopped.
func (d *Dispatcher) Process(ctx context.Context, msg model.InboundMessage) error {
	task := inboundTask{msg: msg, done: make(chan error, 1)}
	w, err := d.submit(ctx, task)
	if err != nil {
		return err
	}
	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.Exited():
		select {
		case err := <-task.done:
			return err
		default:
			return util.ErrWorkerStopped
		}
	}
}

func (d *Dispatcher) submit(ctx context.Context, task inboundTask) (*util.Worker, error) {
	owner := d.ring.GetOwner(task.msg.ConversationKey())
	w, ok := d.workers[owner]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoWorker, task.msg.ConversationKey())
	}
	return w, w.Submit(ctx, task)
}

func (d *Dispatcher) drop(t util.Task) {
	task, ok := t.(inboundTask)
	if !ok {
		return
	}
	logger.Warn("dropping queued inbound message", zap.String("ownerId", task.msg.OwnerId), zap.String("conversationId", task.msg.ConversationId))
	if task.done != nil {
		task.done <- util.ErrWorkerStopped
	}
}

func (d *Dispatcher) handle(t util.Task) error {
	task, ok := t.(inboundTask)
	if !ok {
		return fmt.Errorf("unexpected task %T", t)
	}
	ctx := context.Background()
	if d.conf.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.conf.TaskTimeout)
		defer cancel()
	}
	err := d.processor.ProcessInboundMessage(ctx, task.msg)
	if task.done != nil {
		task.done <- err
	}
	if err != nil {
		logger.Error("error processing inbound message", zap.String("ownerId", task.msg.OwnerId), zap.String("conversationId", task.msg.ConversationId), zap.Error(err))
	}
	return nil
}
