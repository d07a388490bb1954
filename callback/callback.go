package callback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/waterflow/analytics"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/remote"
	"github.com/mohitkumar/waterflow/util"
	"go.uber.org/zap"
)

var ErrInvalidCallback = errors.New("invalid callback")

// Callback is a validated callback declaration of a node.
type Callback struct {
	Name          string   `mapstructure:"name"`
	Type          string   `mapstructure:"type"`
	GenericableId string   `mapstructure:"genericableId"`
	Fitables      []string `mapstructure:"fitables"`
	FilteredKeys  []string `mapstructure:"filteredKeys"`
}

// Error is a callback that failed after its whole retry budget.
type Error struct {
	Name       string
	TypeCode   string
	FitableIDs []string
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("callback %q (%s, fitables [%s]) failed: %v", e.Name, e.TypeCode, strings.Join(e.FitableIDs, ","), e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Parse(def model.CallbackDef) (*Callback, error) {
	var cb Callback
	if err := mapstructure.Decode(def, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if len(cb.GenericableId) == 0 {
		return nil, fmt.Errorf("%w: callback %q has no genericableId", ErrInvalidCallback, cb.Name)
	}
	if len(cb.Name) == 0 {
		cb.Name = cb.GenericableId
	}
	return &cb, nil
}

// FilterData keeps the listed top level keys, or every business key when
// none are listed. Engine bookkeeping is never sent.
func FilterData(data map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		out := model.CloneData(data)
		delete(out, model.INTERNAL_KEY)
		return out
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := data[k]; ok {
			out[k] = v
		}
	}
	return model.CloneData(out)
}

func BuildPayload(cb *Callback, fc *model.FlowContext) model.CallbackPayload {
	return model.CallbackPayload{
		FlowContextId: fc.Id,
		TraceId:       fc.TraceId,
		NodeId:        fc.Position,
		BusinessData:  FilterData(fc.BusinessData, cb.FilteredKeys),
		ContextData:   fc.ContextData.Clone(),
		Status:        fc.Status,
		CreateAt:      fc.CreateAt,
		UpdateAt:      fc.UpdateAt,
		ArchivedAt:    fc.ArchivedAt,
	}
}

type Dispatcher struct {
	invoker remote.Invoker
	policy  util.RetryPolicy
}

func NewDispatcher(invoker remote.Invoker, policy util.RetryPolicy) *Dispatcher {
	return &Dispatcher{
		invoker: invoker,
		policy:  policy,
	}
}

// Dispatch makes attempt number attempt, counted from 1, to deliver the
// payload of fc to cb. A map returned by the callback is handed back so the
// caller can merge it into business data. On failure retry reports whether
// the budget allows another attempt; when it does not, err is an *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, cb *Callback, fc *model.FlowContext, attempt int) (out map[string]any, retry bool, err error) {
	payload := BuildPayload(cb, fc)
	filter := remote.Filter{FitableIDs: cb.Fitables}
	err = d.policy.Try(ctx, func(ctx context.Context) error {
		res := d.invoker.Invoke(ctx, cb.GenericableId, filter, payload)
		analytics.RecordDispatch(ctx, "callback", res.Err)
		if res.Err != nil {
			return res.Err
		}
		if m, ok := res.Value.(map[string]any); ok {
			out = m
		}
		return nil
	})
	if err == nil {
		return out, false, nil
	}
	logger.Warn("callback attempt failed",
		zap.String("callback", cb.Name),
		zap.String("contextId", fc.Id),
		zap.Int("attempt", attempt),
		zap.Error(err))
	if d.policy.Retry(err, attempt) {
		return nil, true, err
	}
	return nil, false, &Error{
		Name:       cb.Name,
		TypeCode:   cb.Type,
		FitableIDs: append([]string(nil), cb.Fitables...),
		Cause:      err,
	}
}
