package util

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mohitkumar/waterflow/logger"
	"go.uber.org/zap"
)

var (
	ErrPoolSaturated = errors.New("worker pool saturated, try later")
	ErrPoolStopped   = errors.New("worker pool stopped")
)

type Task func()

// WorkerPool runs tasks on a fixed number of goroutines fed by a bounded
// queue. Submit never blocks.
type WorkerPool struct {
	name     string
	size     int
	tasks    chan Task
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	started  bool
	stopped  bool
	rejected func()
}

func NewWorkerPool(name string, size int, queueSize int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		name:  name,
		size:  size,
		tasks: make(chan Task, queueSize),
		stop:  make(chan struct{}),
	}
}

// OnReject registers a hook called for every saturated submit.
func (p *WorkerPool) OnReject(fn func()) {
	p.rejected = fn
}

func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	logger.Info("worker pool started", zap.String("pool", p.name), zap.Int("size", p.size), zap.Int("queue", cap(p.tasks)))
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			p.execute(id, task)
		case <-p.stop:
			return
		}
	}
}

func (p *WorkerPool) execute(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked in worker", zap.String("pool", p.name), zap.Int("worker", id), zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	task()
}

func (p *WorkerPool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		if p.rejected != nil {
			p.rejected()
		}
		return ErrPoolSaturated
	}
}

// Stop lets running tasks finish and drops whatever is still queued.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stop)
	p.mu.Unlock()
	p.wg.Wait()
	logger.Info("stopping worker pool", zap.String("pool", p.name), zap.Int("dropped", len(p.tasks)))
}

func (p *WorkerPool) Size() int {
	return p.size
}
