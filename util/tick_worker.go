package util

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohitkumar/waterflow/logger"
	"go.uber.org/zap"
)

type TickWorker struct {
	stop         chan struct{}
	tickInterval time.Duration
	wg           sync.WaitGroup
	name         string
	fn           func()
	running      atomic.Bool
	once         sync.Once
}

func NewTickWorker(name string, interval time.Duration, fn func()) *TickWorker {
	return &TickWorker{
		stop:         make(chan struct{}),
		tickInterval: interval,
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
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tw.fn()
			case <-tw.stop:
				logger.Info("stopping tick worker", zap.String("worker", tw.name))
				tw.running.Store(false)
				return
			}
		}
	}()
	logger.Info("tick worker started", zap.String("worker", tw.name), zap.Duration("interval", tw.tickInterval))
}

// Stop blocks until the current tick, if any, has returned.
func (tw *TickWorker) Stop() {
	tw.once.Do(func() {
		close(tw.stop)
	})
	tw.wg.Wait()
}

func (tw *TickWorker) IsRunning() bool {
	return tw.running.Load()
}
