package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/waterflow/logger"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, filter Filter, payload any) (any, error)

// LocalInvoker dispatches to handlers registered in process.
type LocalInvoker struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

var _ Invoker = new(LocalInvoker)

func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{
		handlers: make(map[string]Handler),
	}
}

func (l *LocalInvoker) Register(serviceID string, handler Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[serviceID] = handler
}

func (l *LocalInvoker) handler(serviceID string) (Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.handlers[serviceID]
	return h, ok
}

func (l *LocalInvoker) Invoke(ctx context.Context, serviceID string, filter Filter, payload any) Result {
	h, ok := l.handler(serviceID)
	if !ok {
		return Result{Err: newError(serviceID, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID))}
	}
	ch := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("local handler panicked", zap.String("service", serviceID), zap.Any("panic", r))
				ch <- Result{Err: newError(serviceID, fmt.Errorf("handler panicked: %v", r))}
			}
		}()
		value, err := h(ctx, filter, payload)
		if err != nil {
			ch <- Result{Err: newError(serviceID, err)}
			return
		}
		ch <- Result{Value: value}
	}()
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		return Result{Err: newError(serviceID, ctx.Err())}
	}
}

func (l *LocalInvoker) InvokeAsync(ctx context.Context, serviceID string, filter Filter, payload any) <-chan Result {
	return async(ctx, l, serviceID, filter, payload)
}
