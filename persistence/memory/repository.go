package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/persistence"
)

type repository struct {
	mu       sync.RWMutex
	contexts map[string]*model.FlowContext
	byTrace  map[string][]string
	traces   map[string]*model.FlowTrace
}

var _ persistence.Repository = new(repository)

func NewRepository() *repository {
	return &repository{
		contexts: make(map[string]*model.FlowContext),
		byTrace:  make(map[string][]string),
		traces:   make(map[string]*model.FlowTrace),
	}
}

func (r *repository) SaveContexts(ctx context.Context, contexts ...*model.FlowContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fc := range contexts {
		if _, ok := r.contexts[fc.Id]; !ok {
			r.byTrace[fc.TraceId] = append(r.byTrace[fc.TraceId], fc.Id)
		}
		r.contexts[fc.Id] = fc.Clone()
	}
	return nil
}

func (r *repository) GetContext(ctx context.Context, id string) (*model.FlowContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fc, ok := r.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context %s: %w", id, persistence.ErrNotFound)
	}
	return fc.Clone(), nil
}

func (r *repository) ListContexts(ctx context.Context, traceId string) ([]*model.FlowContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byTrace[traceId]
	out := make([]*model.FlowContext, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.contexts[id].Clone())
	}
	return out, nil
}

func (r *repository) SaveTrace(ctx context.Context, trace *model.FlowTrace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[trace.Id] = trace.Clone()
	return nil
}

func (r *repository) GetTrace(ctx context.Context, id string) (*model.FlowTrace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traces[id]
	if !ok {
		return nil, fmt.Errorf("trace %s: %w", id, persistence.ErrNotFound)
	}
	return t.Clone(), nil
}
