package main

import (
	"strings"

	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/config"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}

type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	d := config.Default()
	flags := cmd.PersistentFlags()
	flags.String("config-file", "", "Path to config file.")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	flags.Bool("development", false, "human readable logs")
	flags.String("storage-impl", string(d.StorageType), "implementation of underline storage: memory or redis")
	flags.String("redis-addr", strings.Join(d.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	flags.String("namespace", d.RedisConfig.Namespace, "namespace used in storage")
	flags.String("broker-addr", "", "grpc address of the service broker, in process services when empty")
	flags.Int("pool-size", d.PoolSize, "number of engine workers")
	flags.Int("queue-size", d.QueueSize, "capacity of the engine work queue")
	flags.Int("lanes", d.Lanes, "number of context lock lanes")
	flags.Int("retry-attempts", d.RetryAttempts, "attempts of a jober or callback call")
	flags.Duration("retry-interval", d.RetryInterval, "pause between two attempts")
	flags.Duration("call-timeout", d.CallTimeout, "timeout of one remote attempt")
	flags.Duration("tick-interval", d.TickInterval, "poll interval of the continuation queue")
	flags.String("analytics-file", "", "file node results are logged to, none when empty")
	return viper.BindPFlags(flags)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile := viper.GetString("config-file")
	if len(configFile) > 0 {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	viper.SetEnvPrefix("WATERFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	c.cfg.Config = config.Default()
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.Development = viper.GetBool("development")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.BrokerAddr = viper.GetString("broker-addr")
	c.cfg.PoolSize = viper.GetInt("pool-size")
	c.cfg.QueueSize = viper.GetInt("queue-size")
	c.cfg.Lanes = viper.GetInt("lanes")
	c.cfg.RetryAttempts = viper.GetInt("retry-attempts")
	c.cfg.RetryInterval = viper.GetDuration("retry-interval")
	c.cfg.CallTimeout = viper.GetDuration("call-timeout")
	c.cfg.TickInterval = viper.GetDuration("tick-interval")
	if file := viper.GetString("analytics-file"); len(file) > 0 {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{
			FileName:      file,
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
		}
	}
	if err = logger.Init(c.cfg.LogLevel, c.cfg.Development); err != nil {
		return err
	}
	return c.cfg.Validate()
}
