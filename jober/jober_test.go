package jober

import (
	"context"
	"errors"
	"testing"

	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/remote"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *remote.LocalInvoker) {
	inv := remote.NewLocalInvoker()
	inv.Register("risk.score", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		in := payload.(map[string]any)
		return map[string]any{"risk": in["amount"].(int) / 10, "fitables": filter.FitableIDs}, nil
	})
	inv.Register("math.add", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		args := payload.([]any)
		return args[0].(int) + args[1].(int), nil
	})
	inv.Register("store.ledger", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		in := payload.(map[string]any)
		return map[string]any{"stored": in["params"].(map[string]any)["table"]}, nil
	})
	inv.Register("broken", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		return nil, errors.New("unavailable")
	})
	return NewRegistry(Deps{Invoker: inv}), inv
}

func run(t *testing.T, r *Registry, def model.JoberDef, data map[string]any) (map[string]any, error) {
	t.Helper()
	j, err := r.Parse(def)
	require.NoError(t, err)
	ex, err := r.Executor(j)
	require.NoError(t, err)
	return ex.Execute(context.Background(), Task{TraceId: "t", ContextId: "c", NodeId: "n", BusinessData: data})
}

func TestRegistryParse(t *testing.T) {
	r, _ := newTestRegistry()
	require.Len(t, r.TypeCodes(), 6)

	for name, tc := range map[string]struct {
		def  model.JoberDef
		want error
	}{
		"unknown type": {
			def:  model.JoberDef{Name: "x", Type: "FTP_JOBER"},
			want: ErrUnknownType,
		},
		"general without genericable": {
			def:  model.JoberDef{Name: "x", Type: "GENERAL_JOBER"},
			want: ErrInvalidConfig,
		},
		"http without url": {
			def:  model.JoberDef{Name: "x", Type: "HTTP_JOBER", Properties: map[string]any{"method": "GET"}},
			want: ErrInvalidConfig,
		},
		"http with bad method": {
			def:  model.JoberDef{Name: "x", Type: "HTTP_JOBER", Properties: map[string]any{"url": "http://a", "method": "TRACE"}},
			want: ErrInvalidConfig,
		},
		"http with bad timeout": {
			def:  model.JoberDef{Name: "x", Type: "HTTP_JOBER", Properties: map[string]any{"url": "http://a", "timeout": "soon"}},
			want: ErrInvalidConfig,
		},
		"script that does not compile": {
			def:  model.JoberDef{Name: "x", Type: "OHSCRIPT_JOBER", Properties: map[string]any{"script": "$.a = ;"}},
			want: ErrInvalidConfig,
		},
		"store without name": {
			def:  model.JoberDef{Name: "x", Type: "STORE_JOBER"},
			want: ErrInvalidConfig,
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Parse(tc.def)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestTypeCodeIsCaseInsensitive(t *testing.T) {
	r, _ := newTestRegistry()
	j, err := r.Parse(model.JoberDef{Name: "e", Type: "echo_jober"})
	require.NoError(t, err)
	require.Equal(t, ECHO_JOBER, j.Type)
}

func TestExecutors(t *testing.T) {
	r, _ := newTestRegistry()
	for scenario, fn := range map[string]func(t *testing.T){
		"general invokes genericable with fitables": func(t *testing.T) {
			out, err := run(t, r, model.JoberDef{
				Name: "score", Type: "GENERAL_JOBER", Fitables: []string{"v2"},
				Properties: map[string]any{"genericableId": "risk.score"},
			}, map[string]any{"amount": 500})
			require.NoError(t, err)
			require.Equal(t, map[string]any{"risk": 50, "fitables": []string{"v2"}}, out)
		},
		"genericable passes params positionally": func(t *testing.T) {
			out, err := run(t, r, model.JoberDef{
				Name: "add", Type: "GENERICABLE_JOBER",
				Properties: map[string]any{"genericableId": "math.add", "params": []any{"a", "b"}},
			}, map[string]any{"a": 2, "b": 3})
			require.NoError(t, err)
			require.Equal(t, map[string]any{RESULT_KEY: 5}, out)
		},
		"store invokes prefixed tool": func(t *testing.T) {
			out, err := run(t, r, model.JoberDef{
				Name: "save", Type: "STORE_JOBER",
				Properties: map[string]any{"uniqueName": "ledger", "params": map[string]any{"table": "orders"}},
			}, map[string]any{})
			require.NoError(t, err)
			require.Equal(t, map[string]any{"stored": "orders"}, out)
		},
		"echo adds fields and drops internals": func(t *testing.T) {
			data := map[string]any{"a": 1}
			model.SetNodeOutput(data, "prev", map[string]any{"x": 1})
			out, err := run(t, r, model.JoberDef{
				Name: "echo", Type: "ECHO_JOBER",
				Properties: map[string]any{"fields": map[string]any{"b": 2}},
			}, data)
			require.NoError(t, err)
			require.Equal(t, map[string]any{"a": 1, "b": 2}, out)
		},
		"remote failure is an execution error": func(t *testing.T) {
			_, err := run(t, r, model.JoberDef{
				Name: "broken", Type: "GENERAL_JOBER",
				Properties: map[string]any{"genericableId": "broken"},
			}, map[string]any{})
			require.ErrorIs(t, err, ErrExecution)
			var re *remote.Error
			require.True(t, errors.As(err, &re))
			var ee *ExecutionError
			require.True(t, errors.As(err, &ee))
			require.Equal(t, "broken", ee.Name)
		},
	} {
		t.Run(scenario, fn)
	}
}
