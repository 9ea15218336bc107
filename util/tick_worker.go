package util

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/avenping/flowengine/logger"
	"go.uber.org/zap"
)

type TickWorker struct {
	stop         chan struct{}
	stopOnce     sync.Once
	tickInterval time.Duration
	wg           *sync.WaitGroup
	name         string
	fn           func()
	running      atomic.Bool
}

func NewTickWorker(name string, interval time.Duration, fn func(), wg *sync.WaitGroup) *TickWorker {
	return &TickWorker{
		stop:         make(chan struct{}),
		tickInterval: interval,
		wg:           wg,
		fn:           fn,
		name:         name,
	}
}

func (tw *TickWorker) Start() {
	if !tw.running.CompareAndSwap(false, true) {
		return
	}
	ticker := time.NewTicker(tw.tickInterval)
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		defer tw.running.Store(false)
		for {
			select {
			case <-ticker.C:
				tw.fn()
			case <-tw.stop:
				logger.Info("stopping tick worker", zap.String("worker", tw.name))
				ticker.Stop()
				return
			}
		}
	}()
	logger.Info("tick worker started", zap.String("worker", tw.name), zap.Duration("interval", tw.tickInterval))
}

func (tw *TickWorker) Stop() {
	tw.stopOnce.Do(func() {
		close(tw.stop)
	})
}

func (tw *TickWorker) IsRunning() bool {
	return tw.running.Load()
}
