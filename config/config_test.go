package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"default is valid": func(t *testing.T) {
			require.NoError(t, Default().Validate())
		},
		"unknown storage": func(t *testing.T) {
			c := Default()
			c.StorageType = "dynamo"
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		},
		"redis without address": func(t *testing.T) {
			c := Default()
			c.StorageType = STORAGE_TYPE_REDIS
			c.RedisConfig.Addrs = nil
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		},
		"pool must have workers": func(t *testing.T) {
			c := Default()
			c.PoolSize = 0
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		},
		"retry policy follows config": func(t *testing.T) {
			c := Default()
			c.RetryAttempts = 3
			c.RetryInterval = 10 * time.Millisecond
			c.CallTimeout = time.Second
			p := c.RetryPolicy()
			require.Equal(t, 3, p.Attempts)
			require.Equal(t, 10*time.Millisecond, p.Interval)
			require.Equal(t, time.Second, p.Timeout)
		},
	} {
		t.Run(scenario, fn)
	}
}
