package util

import (
	"context"
	"errors"
	"sync"

	"github.com/avenping/flowengine/logger"
	"go.uber.org/zap"
)

var ErrWorkerStopped = errors.New("worker stopped")

type Task any

// Worker runs handler for each submitted task on a single goroutine, so
// tasks sent to the same worker never run concurrently. Tasks still queued
// when the worker stops are passed to the drop handler instead.
type Worker struct {
	name     string
	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}
	wg       *sync.WaitGroup
	handler  func(Task) error
	onDrop   func(Task)
	taskChan chan Task
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Task) error, capacity int) *Worker {
	return &Worker{
		taskChan: make(chan Task, capacity),
		name:     name,
		wg:       wg,
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
		handler:  handler,
	}
}

// OnDrop sets the function called for each task discarded on stop. It must
// be set before Start.
func (w *Worker) OnDrop(fn func(Task)) {
	w.onDrop = fn
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.exited)

		for {
			select {
			case <-w.stop:
				w.drain()
				return
			default:
			}
			select {
			case task := <-w.taskChan:
				err := w.handler(task)
				if err != nil {
					logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Any("task", task), zap.Error(err))
				}
			case <-w.stop:
				w.drain()
				return
			}
		}
	}()
}

func (w *Worker) drain() {
	dropped := 0
	for {
		select {
		case task := <-w.taskChan:
			dropped++
			if w.onDrop != nil {
				w.onDrop(task)
			}
		default:
			logger.Info("stopping worker", zap.String("worker", w.name), zap.Int("dropped", dropped))
			return
		}
	}
}

// Submit blocks until the task is queued, the context is done or the
// worker is stopped.
func (w *Worker) Submit(ctx context.Context, task Task) error {
	select {
	case <-w.stop:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrWorkerStopped
	}
}

func (w *Worker) Name() string {
	return w.name
}

// Exited is closed once the worker goroutine has returned.
func (w *Worker) Exited() <-chan struct{} {
	return w.exited
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}
