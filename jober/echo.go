package jober

import (
	"context"

	"github.com/mohitkumar/waterflow/model"
)

type EchoConfig struct {
	Fields map[string]any `mapstructure:"fields"`
}

// echo returns its input, plus the static fields.
var echoBehaviour = Behaviour{
	Parse: parser[EchoConfig](),
	Validate: func(*Jober) error {
		return nil
	},
	Bind: func(j *Jober, deps Deps) Executor {
		cfg := j.Config.(*EchoConfig)
		return ExecutorFunc(func(ctx context.Context, task Task) (map[string]any, error) {
			out := model.CloneData(task.BusinessData)
			delete(out, model.INTERNAL_KEY)
			model.MergeData(out, cfg.Fields)
			return out, nil
		})
	},
}
