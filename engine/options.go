package engine

import (
	"time"

	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/persistence"
	"github.com/mohitkumar/waterflow/persistence/memory"
	"github.com/mohitkumar/waterflow/remote"
	"github.com/mohitkumar/waterflow/status"
	"github.com/mohitkumar/waterflow/util"
)

type options struct {
	repo         persistence.Repository
	delay        persistence.DelayQueue
	invoker      remote.Invoker
	registry     *jober.Registry
	table        *status.Table
	collector    analytics.FlowDataCollector
	poolSize     int
	queueSize    int
	lanes        int
	policy       util.RetryPolicy
	tickInterval time.Duration
	clock        func() time.Time
}

type Option func(*options)

func defaultOptions() options {
	return options{
		repo:         memory.NewRepository(),
		delay:        memory.NewDelayQueue(),
		invoker:      remote.NewLocalInvoker(),
		table:        status.NewTable(),
		poolSize:     16,
		queueSize:    1024,
		lanes:        32,
		policy:       util.DefaultRetryPolicy,
		tickInterval: 100 * time.Millisecond,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func WithRepository(repo persistence.Repository) Option {
	return func(o *options) { o.repo = repo }
}

func WithDelayQueue(delay persistence.DelayQueue) Option {
	return func(o *options) { o.delay = delay }
}

func WithInvoker(invoker remote.Invoker) Option {
	return func(o *options) { o.invoker = invoker }
}

// WithRegistry replaces the jober registry. By default one is built around
// the engine's invoker.
func WithRegistry(registry *jober.Registry) Option {
	return func(o *options) { o.registry = registry }
}

func WithTable(table *status.Table) Option {
	return func(o *options) { o.table = table }
}

func WithCollector(collector analytics.FlowDataCollector) Option {
	return func(o *options) { o.collector = collector }
}

func WithPool(size int, queueSize int) Option {
	return func(o *options) {
		o.poolSize = size
		o.queueSize = queueSize
	}
}

func WithLanes(lanes int) Option {
	return func(o *options) { o.lanes = lanes }
}

func WithRetryPolicy(policy util.RetryPolicy) Option {
	return func(o *options) { o.policy = policy }
}

func WithTickInterval(interval time.Duration) Option {
	return func(o *options) { o.tickInterval = interval }
}
