package jober

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"go.uber.org/zap"
)

type ScriptConfig struct {
	Script string `mapstructure:"script"`
}

type compiledScript struct {
	ScriptConfig
	program *goja.Program
}

var scriptBehaviour = Behaviour{
	Parse: func(def model.JoberDef) (any, error) {
		cfg, err := decode[ScriptConfig](def.Properties)
		if err != nil {
			return nil, err
		}
		cs := &compiledScript{ScriptConfig: *cfg}
		if len(cfg.Script) == 0 {
			return cs, nil
		}
		program, err := goja.Compile(def.Name, cfg.Script, false)
		if err != nil {
			return nil, fmt.Errorf("script does not compile: %w", err)
		}
		cs.program = program
		return cs, nil
	},
	Validate: func(j *Jober) error {
		if j.Config.(*compiledScript).program == nil {
			return errors.New("script can not be empty")
		}
		return nil
	},
	Bind: func(j *Jober, deps Deps) Executor {
		cs := j.Config.(*compiledScript)
		return ExecutorFunc(func(ctx context.Context, task Task) (map[string]any, error) {
			out, err := runScript(ctx, cs.program, task.BusinessData)
			if err != nil {
				return nil, executionError(j, err)
			}
			return out, nil
		})
	},
}

// runScript runs the program in a fresh VM with the business data bound to
// $, and returns what $ holds afterwards.
func runScript(ctx context.Context, program *goja.Program, data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	if err := vm.Set("$", input); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	if _, err := vm.RunProgram(program); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			logger.Warn("script interrupted", zap.Error(err))
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	res, err := json.Marshal(vm.Get("$").Export())
	if err != nil {
		return nil, err
	}
	var output any
	if err := json.Unmarshal(res, &output); err != nil {
		return nil, err
	}
	return toOutput(output), nil
}
