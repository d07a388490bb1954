package jober

import (
	"context"
	"errors"

	"github.com/mohitkumar/waterflow/remote"
)

type GeneralConfig struct {
	GenericableId string `mapstructure:"genericableId"`
}

type GenericableConfig struct {
	GenericableId string   `mapstructure:"genericableId"`
	Params        []string `mapstructure:"params"`
}

type StoreConfig struct {
	UniqueName string         `mapstructure:"uniqueName"`
	Params     map[string]any `mapstructure:"params"`
}

const STORE_SERVICE_PREFIX string = "store."

var generalBehaviour = Behaviour{
	Parse: parser[GeneralConfig](),
	Validate: func(j *Jober) error {
		if len(j.Config.(*GeneralConfig).GenericableId) == 0 {
			return errors.New("genericableId can not be empty")
		}
		return nil
	},
	Bind: func(j *Jober, deps Deps) Executor {
		cfg := j.Config.(*GeneralConfig)
		return invokeExecutor(j, deps.Invoker, cfg.GenericableId, func(task Task) any {
			return task.BusinessData
		})
	},
}

var genericableBehaviour = Behaviour{
	Parse: parser[GenericableConfig](),
	Validate: func(j *Jober) error {
		if len(j.Config.(*GenericableConfig).GenericableId) == 0 {
			return errors.New("genericableId can not be empty")
		}
		return nil
	},
	Bind: func(j *Jober, deps Deps) Executor {
		cfg := j.Config.(*GenericableConfig)
		return invokeExecutor(j, deps.Invoker, cfg.GenericableId, func(task Task) any {
			args := make([]any, 0, len(cfg.Params))
			for _, p := range cfg.Params {
				args = append(args, task.BusinessData[p])
			}
			return args
		})
	},
}

var storeBehaviour = Behaviour{
	Parse: parser[StoreConfig](),
	Validate: func(j *Jober) error {
		if len(j.Config.(*StoreConfig).UniqueName) == 0 {
			return errors.New("uniqueName can not be empty")
		}
		return nil
	},
	Bind: func(j *Jober, deps Deps) Executor {
		cfg := j.Config.(*StoreConfig)
		return invokeExecutor(j, deps.Invoker, STORE_SERVICE_PREFIX+cfg.UniqueName, func(task Task) any {
			return map[string]any{
				"params":       cfg.Params,
				"businessData": task.BusinessData,
			}
		})
	},
}

func invokeExecutor(j *Jober, invoker remote.Invoker, serviceID string, payload func(Task) any) Executor {
	filter := remote.Filter{FitableIDs: j.Fitables}
	return ExecutorFunc(func(ctx context.Context, task Task) (map[string]any, error) {
		if invoker == nil {
			return nil, executionError(j, errors.New("no invoker configured"))
		}
		res := invoker.Invoke(ctx, serviceID, filter, payload(task))
		if res.Err != nil {
			return nil, executionError(j, res.Err)
		}
		return toOutput(res.Value), nil
	})
}
