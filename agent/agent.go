package agent

import (
	"context"
	"net/http"
	"sync"

	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/config"
	"github.com/mohitkumar/waterflow/engine"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/persistence"
	"github.com/mohitkumar/waterflow/persistence/memory"
	"github.com/mohitkumar/waterflow/persistence/redis"
	"github.com/mohitkumar/waterflow/remote"
	"go.uber.org/zap"
)

// ECHO_SERVICE is served by the in-process invoker and answers with its
// payload.
const ECHO_SERVICE string = "echo"

type Agent struct {
	Config       config.Config
	Engine       *engine.Engine
	local        *remote.LocalInvoker
	invoker      remote.Invoker
	repo         persistence.Repository
	delay        persistence.DelayQueue
	collector    analytics.FlowDataCollector
	closers      []func() error
	shutdown     bool
	shutdownLock sync.Mutex
}

func New(config config.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config: config,
	}
	setup := []func() error{
		a.setupMetrics,
		a.setupStorage,
		a.setupInvoker,
		a.setupCollector,
		a.setupEngine,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupMetrics() error {
	return analytics.RegisterViews()
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		conf := redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			PoolSize:  a.Config.RedisConfig.PoolSize,
		}
		repo := redis.NewRedisRepository(conf)
		delay := redis.NewRedisDelayQueue(conf)
		a.repo, a.delay = repo, delay
		a.closers = append(a.closers, repo.Close, delay.Close)
		logger.Info("using redis storage", zap.Strings("addrs", conf.Addrs), zap.String("namespace", conf.Namespace))
	default:
		a.repo, a.delay = memory.NewRepository(), memory.NewDelayQueue()
		logger.Info("using in memory storage")
	}
	return nil
}

func (a *Agent) setupInvoker() error {
	a.local = remote.NewLocalInvoker()
	a.local.Register(ECHO_SERVICE, func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		return payload, nil
	})
	if len(a.Config.BrokerAddr) == 0 {
		a.invoker = a.local
		return nil
	}
	grpcInvoker, err := remote.NewGrpcInvoker(a.Config.BrokerAddr)
	if err != nil {
		return err
	}
	a.invoker = grpcInvoker
	a.closers = append(a.closers, grpcInvoker.Close)
	logger.Info("invoking services through broker", zap.String("broker", a.Config.BrokerAddr))
	return nil
}

func (a *Agent) setupCollector() error {
	var err error
	a.collector, err = analytics.NewDataCollector(a.Config.AnalyticsConfig)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.collector.Close)
	return nil
}

func (a *Agent) setupEngine() error {
	registry := jober.NewRegistry(jober.Deps{
		Invoker:    a.invoker,
		HttpClient: &http.Client{Timeout: a.Config.CallTimeout},
	})
	a.Engine = engine.New(
		engine.WithRepository(a.repo),
		engine.WithDelayQueue(a.delay),
		engine.WithInvoker(a.invoker),
		engine.WithRegistry(registry),
		engine.WithCollector(a.collector),
		engine.WithPool(a.Config.PoolSize, a.Config.QueueSize),
		engine.WithLanes(a.Config.Lanes),
		engine.WithRetryPolicy(a.Config.RetryPolicy()),
		engine.WithTickInterval(a.Config.TickInterval),
	)
	return nil
}

// Local is the in-process invoker. Handlers registered on it are reachable
// only when no broker is configured.
func (a *Agent) Local() *remote.LocalInvoker {
	return a.local
}

func (a *Agent) Start() error {
	a.Engine.Start()
	logger.Info("agent started", zap.String("storage", string(a.Config.StorageType)))
	return nil
}

func (a *Agent) Shutdown(ctx context.Context) error {
	logger.Info("shutting down agent")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	err := a.Engine.Stop(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *Agent) close() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
