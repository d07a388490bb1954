package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/util"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel        string
	Development     bool
	StorageType     StorageType
	RedisConfig     RedisStorageConfig
	BrokerAddr      string
	PoolSize        int
	QueueSize       int
	Lanes           int
	RetryAttempts   int
	RetryInterval   time.Duration
	CallTimeout     time.Duration
	TickInterval    time.Duration
	AnalyticsConfig analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	PoolSize  int
}

func Default() Config {
	return Config{
		LogLevel:      "info",
		StorageType:   STORAGE_TYPE_INMEM,
		RedisConfig:   RedisStorageConfig{Addrs: []string{"localhost:6379"}, Namespace: "waterflow"},
		PoolSize:      16,
		QueueSize:     1024,
		Lanes:         32,
		RetryAttempts: util.DefaultRetryPolicy.Attempts,
		RetryInterval: util.DefaultRetryPolicy.Interval,
		CallTimeout:   util.DefaultRetryPolicy.Timeout,
		TickInterval:  100 * time.Millisecond,
		AnalyticsConfig: analytics.DataCollectorConfig{
			CollectorType: analytics.NOP_DATA_COLLECTOR,
		},
	}
}

func (c Config) RetryPolicy() util.RetryPolicy {
	return util.RetryPolicy{
		Attempts: c.RetryAttempts,
		Interval: c.RetryInterval,
		Timeout:  c.CallTimeout,
	}
}

func (c Config) Validate() error {
	switch c.StorageType {
	case STORAGE_TYPE_INMEM:
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 {
			return fmt.Errorf("%w: redis storage needs at least one address", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.StorageType)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("%w: pool-size must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue-size can not be negative", ErrInvalidConfig)
	}
	if c.Lanes <= 0 {
		return fmt.Errorf("%w: lanes must be positive", ErrInvalidConfig)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("%w: retry-attempts must be positive", ErrInvalidConfig)
	}
	if c.CallTimeout <= 0 || c.TickInterval <= 0 {
		return fmt.Errorf("%w: call-timeout and tick-interval must be positive", ErrInvalidConfig)
	}
	return nil
}
