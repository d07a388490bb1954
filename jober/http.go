package jober

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohitkumar/waterflow/util"
)

type HttpConfig struct {
	Url     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Body    any               `mapstructure:"body"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

var httpMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

var httpBehaviour = Behaviour{
	Parse: parser[HttpConfig](),
	Validate: func(j *Jober) error {
		cfg := j.Config.(*HttpConfig)
		if len(cfg.Url) == 0 {
			return errors.New("url can not be empty")
		}
		if len(cfg.Method) == 0 {
			cfg.Method = http.MethodGet
		}
		cfg.Method = strings.ToUpper(cfg.Method)
		if _, ok := httpMethods[cfg.Method]; !ok {
			return fmt.Errorf("unsupported method %s", cfg.Method)
		}
		if cfg.Timeout < 0 {
			return errors.New("timeout can not be negative")
		}
		return nil
	},
	Bind: func(j *Jober, deps Deps) Executor {
		cfg := j.Config.(*HttpConfig)
		client := deps.HttpClient
		return ExecutorFunc(func(ctx context.Context, task Task) (map[string]any, error) {
			out, err := doHttp(ctx, client, cfg, task.BusinessData)
			if err != nil {
				return nil, executionError(j, err)
			}
			return out, nil
		})
	},
}

func doHttp(ctx context.Context, client *http.Client, cfg *HttpConfig, data map[string]any) (map[string]any, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	target := util.ResolveString(data, cfg.Url)
	if _, err := url.Parse(target); err != nil {
		return nil, err
	}
	var body io.Reader
	if cfg.Body != nil {
		resolved := util.ResolveParams(data, map[string]any{"body": cfg.Body})["body"]
		raw, err := json.Marshal(resolved)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.Method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, util.ResolveString(data, v))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s returned %d: %s", cfg.Method, target, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{RESULT_KEY: string(raw)}, nil
	}
	return toOutput(decoded), nil
}
