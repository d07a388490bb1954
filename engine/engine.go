package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/cache"
	"github.com/mohitkumar/waterflow/callback"
	"github.com/mohitkumar/waterflow/flow"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/persistence"
	"github.com/mohitkumar/waterflow/status"
	"github.com/mohitkumar/waterflow/util"
	"go.uber.org/zap"
)

// Engine drives contexts through parsed flow definitions.
type Engine struct {
	table        *status.Table
	repo         persistence.Repository
	delay        persistence.DelayQueue
	registry     *jober.Registry
	callbacks    *callback.Dispatcher
	definitions  *cache.DefinitionCache
	pool         *util.WorkerPool
	ticker       *util.TickWorker
	lanes        *lanes
	sync         *synchronizer
	policy       util.RetryPolicy
	collector    analytics.FlowDataCollector
	tickInterval time.Duration
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	watchMu  sync.Mutex
	watchers map[string]chan struct{}
}

func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = jober.NewRegistry(jober.Deps{Invoker: o.invoker})
	}
	if o.collector == nil {
		o.collector, _ = analytics.NewDataCollector(analytics.DataCollectorConfig{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		table:        o.table,
		repo:         o.repo,
		delay:        o.delay,
		registry:     o.registry,
		callbacks:    callback.NewDispatcher(o.invoker, o.policy),
		definitions:  cache.NewDefinitionCache(),
		pool:         util.NewWorkerPool("engine", o.poolSize, o.queueSize),
		lanes:        newLanes(o.lanes),
		policy:       o.policy,
		collector:    o.collector,
		tickInterval: o.tickInterval,
		now:          o.clock,
		ctx:          ctx,
		cancel:       cancel,
		watchers:     make(map[string]chan struct{}),
	}
	e.sync = newSynchronizer(e)
	e.pool.OnReject(analytics.RecordPoolRejection)
	e.ticker = util.NewTickWorker("continuations", o.tickInterval, e.poll)
	return e
}

func (e *Engine) Start() {
	e.pool.Start()
	e.ticker.Start()
	logger.Info("engine started", zap.Int("workers", e.pool.Size()), zap.Duration("tickInterval", e.tickInterval))
}

// Stop stops polling and lets running node work drain until ctx is done.
func (e *Engine) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.ticker.Stop()
		e.pool.Stop()
		close(done)
	}()
	defer e.cancel()
	select {
	case <-done:
		logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry is the jober registry definitions must be parsed with.
func (e *Engine) Registry() *jober.Registry {
	return e.registry
}

func (e *Engine) RegisterDefinition(def *flow.Definition) {
	e.definitions.Save(def)
	logger.Info("flow definition registered", zap.String("definitionId", def.Id), zap.String("version", def.Version))
}

// LoadDefinition parses an authored definition and registers it.
func (e *Engine) LoadDefinition(raw []byte) (*flow.Definition, error) {
	def, err := flow.Parse(raw, e.registry)
	if err != nil {
		return nil, err
	}
	e.RegisterDefinition(def)
	return def, nil
}

func (e *Engine) Definition(id string) (*flow.Definition, error) {
	def, ok := e.definitions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
	}
	return def, nil
}

// Definitions lists the ids of registered definitions in order.
func (e *Engine) Definitions() []string {
	ids := e.definitions.Ids()
	sort.Strings(ids)
	return ids
}

// StartTrace creates a trace with one context at the start node. When the
// worker pool is saturated nothing is created and util.ErrPoolSaturated is
// returned.
func (e *Engine) StartTrace(ctx context.Context, definitionID string, businessData map[string]any) (*model.FlowTrace, error) {
	def, err := e.Definition(definitionID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	trace := &model.FlowTrace{
		Id:           uuid.NewString(),
		DefinitionId: def.Id,
		Status:       model.TRACE_STATUS_READY,
		StartTime:    now,
	}
	start := e.newContext(trace.Id, def.Id, def.Start.Id, model.CloneData(businessData), model.ContextData{}, nil)
	trace.ContextIds = []string{start.Id}

	gate := make(chan bool, 1)
	if err := e.pool.Submit(func() {
		if <-gate {
			e.enter(start.Id)
		}
	}); err != nil {
		logger.Warn("rejecting new trace", zap.String("definitionId", def.Id), zap.Error(err))
		return nil, err
	}
	if err := e.repo.SaveContexts(ctx, start); err != nil {
		gate <- false
		return nil, err
	}
	if err := e.repo.SaveTrace(ctx, trace); err != nil {
		gate <- false
		return nil, err
	}
	if _, err := e.write(ctx, start.Id, []model.FlowNodeStatus{model.NODE_STATUS_PENDING}, nil); err != nil {
		gate <- false
		return nil, err
	}
	started, err := e.repo.GetTrace(ctx, trace.Id)
	if err != nil {
		gate <- false
		return nil, err
	}
	gate <- true
	logger.Info("trace started", zap.String("traceId", trace.Id), zap.String("definitionId", def.Id))
	return started, nil
}

// Resume continues a context parked at a MANUAL node. data is merged into
// its business data first. The context is PROCESSING once Resume returns
// nil; when the worker pool is saturated nothing changes and
// util.ErrPoolSaturated is returned.
func (e *Engine) Resume(ctx context.Context, contextID string, data map[string]any) error {
	fc, err := e.repo.GetContext(ctx, contextID)
	if err != nil {
		return err
	}
	_, node, err := e.locate(fc)
	if err != nil {
		return err
	}
	if !node.IsManual() {
		return fmt.Errorf("%w: %s is at %s which is not manual", ErrNotResumable, fc.Id, fc.Position)
	}
	extra := model.CloneData(data)

	gate := make(chan *model.FlowContext, 1)
	if err := e.pool.Submit(func() {
		if resumed := <-gate; resumed != nil {
			e.work(e.ctx, resumed)
		}
	}); err != nil {
		return err
	}
	resumed, err := e.writeIf(ctx, contextID, func(fc *model.FlowContext) error {
		if fc.Status != model.NODE_STATUS_READY {
			return fmt.Errorf("%w: %s is %s at %s", ErrNotResumable, fc.Id, fc.Status, fc.Position)
		}
		if node.Type == model.NODE_TYPE_JOIN && !fc.ContextData.Joined {
			return fmt.Errorf("%w: %s is waiting for its join", ErrNotResumable, fc.Id)
		}
		return nil
	}, statuses(model.NODE_STATUS_PROCESSING), func(fc *model.FlowContext) {
		model.MergeData(fc.BusinessData, extra)
	})
	if err != nil {
		gate <- nil
		if errors.Is(err, errContextTerminated) {
			return fmt.Errorf("%w: %s is terminated", ErrNotResumable, contextID)
		}
		return err
	}
	gate <- resumed
	logger.Info("context resumed", zap.String("traceId", fc.TraceId), zap.String("contextId", fc.Id))
	return nil
}

// Terminate stops a running trace. Contexts that can still move to
// TERMINATE do so; results of work in flight are dropped.
func (e *Engine) Terminate(ctx context.Context, traceID string) error {
	unlock := e.lanes.lock(traceID)
	trace, err := e.repo.GetTrace(ctx, traceID)
	if err != nil {
		unlock()
		return err
	}
	if trace.Terminated {
		unlock()
		return nil
	}
	if trace.Status.IsTerminal() {
		unlock()
		return fmt.Errorf("%w: %s is %s", ErrTraceFinished, traceID, trace.Status)
	}
	trace.Terminated = true
	err = e.repo.SaveTrace(ctx, trace)
	unlock()
	if err != nil {
		return err
	}

	contexts, err := e.repo.ListContexts(ctx, traceID)
	if err != nil {
		return err
	}
	for _, fc := range contexts {
		if !e.table.CanTransition(fc.Status, model.NODE_STATUS_TERMINATE) {
			continue
		}
		e.terminateContext(ctx, fc.Id)
	}
	e.sync.forget(traceID)
	e.refreshTrace(ctx, traceID)
	logger.Info("trace terminated", zap.String("traceId", traceID))
	return nil
}

func (e *Engine) Trace(ctx context.Context, traceID string) (*model.FlowTrace, error) {
	return e.repo.GetTrace(ctx, traceID)
}

func (e *Engine) Contexts(ctx context.Context, traceID string) ([]*model.FlowContext, error) {
	return e.repo.ListContexts(ctx, traceID)
}

func (e *Engine) Context(ctx context.Context, contextID string) (*model.FlowContext, error) {
	return e.repo.GetContext(ctx, contextID)
}

// Await blocks until the trace reaches a terminal status or ctx is done.
func (e *Engine) Await(ctx context.Context, traceID string) (*model.FlowTrace, error) {
	for {
		ch := e.watch(traceID)
		trace, err := e.repo.GetTrace(ctx, traceID)
		if err != nil {
			return nil, err
		}
		if trace.Status.IsTerminal() {
			return trace, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return trace, ctx.Err()
		}
	}
}

func (e *Engine) watch(traceID string) <-chan struct{} {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	ch, ok := e.watchers[traceID]
	if !ok {
		ch = make(chan struct{})
		e.watchers[traceID] = ch
	}
	return ch
}

func (e *Engine) notify(traceID string) {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if ch, ok := e.watchers[traceID]; ok {
		close(ch)
		delete(e.watchers, traceID)
	}
}

func (e *Engine) locate(fc *model.FlowContext) (*flow.Definition, *flow.Node, error) {
	def, err := e.Definition(fc.DefinitionId)
	if err != nil {
		return nil, nil, err
	}
	node, ok := def.Node(fc.Position)
	if !ok {
		return nil, nil, fmt.Errorf("%w: node %s not in %s", ErrDefinitionNotFound, fc.Position, def.Id)
	}
	return def, node, nil
}

func (e *Engine) isTerminated(ctx context.Context, traceID string) bool {
	trace, err := e.repo.GetTrace(ctx, traceID)
	if err != nil {
		logger.Error("error loading trace", zap.String("traceId", traceID), zap.Error(err))
		return false
	}
	return trace.Terminated
}

func (e *Engine) terminateContext(ctx context.Context, id string) {
	_, err := e.write(ctx, id, []model.FlowNodeStatus{model.NODE_STATUS_TERMINATE}, nil)
	if err != nil && !errors.Is(err, errContextTerminated) {
		logger.Debug("context not terminated", zap.String("contextId", id), zap.Error(err))
	}
}
