package jober

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/remote"
)

type TypeCode string

const GENERAL_JOBER TypeCode = "GENERAL_JOBER"
const HTTP_JOBER TypeCode = "HTTP_JOBER"
const ECHO_JOBER TypeCode = "ECHO_JOBER"
const OHSCRIPT_JOBER TypeCode = "OHSCRIPT_JOBER"
const GENERICABLE_JOBER TypeCode = "GENERICABLE_JOBER"
const STORE_JOBER TypeCode = "STORE_JOBER"

// RESULT_KEY holds a jober result that is not an object.
const RESULT_KEY string = "result"

var (
	ErrUnknownType   = errors.New("unknown jober type")
	ErrInvalidConfig = errors.New("invalid jober config")
	ErrExecution     = errors.New("jober execution failed")
)

// Task is what an executor sees of the context it runs for.
type Task struct {
	TraceId      string
	ContextId    string
	NodeId       string
	BusinessData map[string]any
}

// Executor runs one attempt of a jober. The returned map is the node output.
type Executor interface {
	Execute(ctx context.Context, task Task) (map[string]any, error)
}

type ExecutorFunc func(ctx context.Context, task Task) (map[string]any, error)

func (f ExecutorFunc) Execute(ctx context.Context, task Task) (map[string]any, error) {
	return f(ctx, task)
}

// Jober is a parsed and validated jober declaration.
type Jober struct {
	Name     string
	Type     TypeCode
	Fitables []string
	Config   any
}

// Deps are what executors are bound to at run time.
type Deps struct {
	Invoker    remote.Invoker
	HttpClient *http.Client
}

// Behaviour is the load time and run time handling of one type code.
type Behaviour struct {
	Parse    func(def model.JoberDef) (any, error)
	Validate func(j *Jober) error
	Bind     func(j *Jober, deps Deps) Executor
}

// Registry maps the closed set of type codes onto behaviours. It is built
// once and read only afterwards.
type Registry struct {
	behaviours map[TypeCode]Behaviour
	deps       Deps
}

func NewRegistry(deps Deps) *Registry {
	if deps.HttpClient == nil {
		deps.HttpClient = http.DefaultClient
	}
	return &Registry{
		behaviours: map[TypeCode]Behaviour{
			GENERAL_JOBER:     generalBehaviour,
			GENERICABLE_JOBER: genericableBehaviour,
			STORE_JOBER:       storeBehaviour,
			HTTP_JOBER:        httpBehaviour,
			ECHO_JOBER:        echoBehaviour,
			OHSCRIPT_JOBER:    scriptBehaviour,
		},
		deps: deps,
	}
}

func (r *Registry) TypeCodes() []TypeCode {
	codes := make([]TypeCode, 0, len(r.behaviours))
	for code := range r.behaviours {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func (r *Registry) behaviour(code string) (TypeCode, Behaviour, error) {
	tc := TypeCode(strings.ToUpper(strings.TrimSpace(code)))
	b, ok := r.behaviours[tc]
	if !ok {
		return "", Behaviour{}, fmt.Errorf("%w: %q", ErrUnknownType, code)
	}
	return tc, b, nil
}

// Parse decodes and validates a jober declaration at definition load time.
func (r *Registry) Parse(def model.JoberDef) (*Jober, error) {
	tc, b, err := r.behaviour(def.Type)
	if err != nil {
		return nil, err
	}
	cfg, err := b.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("%w: jober %q: %v", ErrInvalidConfig, def.Name, err)
	}
	j := &Jober{
		Name:     def.Name,
		Type:     tc,
		Fitables: append([]string(nil), def.Fitables...),
		Config:   cfg,
	}
	if err := b.Validate(j); err != nil {
		return nil, fmt.Errorf("%w: jober %q: %v", ErrInvalidConfig, def.Name, err)
	}
	return j, nil
}

// Executor binds a parsed jober to the run time dependencies.
func (r *Registry) Executor(j *Jober) (Executor, error) {
	_, b, err := r.behaviour(string(j.Type))
	if err != nil {
		return nil, err
	}
	return b.Bind(j, r.deps), nil
}

func decode[T any](properties map[string]any) (*T, error) {
	var cfg T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(properties); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parser[T any]() func(def model.JoberDef) (any, error) {
	return func(def model.JoberDef) (any, error) {
		return decode[T](def.Properties)
	}
}

// toOutput turns a call result into a node output.
func toOutput(value any) map[string]any {
	switch v := value.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	}
	return map[string]any{RESULT_KEY: value}
}

// ExecutionError is a failed jober attempt. It matches ErrExecution and
// unwraps to the cause.
type ExecutionError struct {
	Name  string
	Type  TypeCode
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", ErrExecution, e.Type, e.Name, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

func executionError(j *Jober, err error) error {
	return &ExecutionError{Name: j.Name, Type: j.Type, Cause: err}
}
