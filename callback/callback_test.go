package callback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/remote"
	"github.com/mohitkumar/waterflow/util"
	"github.com/stretchr/testify/require"
)

var testPolicy = util.RetryPolicy{Attempts: 3, Interval: time.Millisecond, Timeout: 50 * time.Millisecond}

func testContext() *model.FlowContext {
	data := map[string]any{"orderId": "o-1", "amount": 10, "secret": "x"}
	model.SetNodeOutput(data, "n0", map[string]any{"k": 1})
	now := time.Now()
	return &model.FlowContext{
		Id:           "c1",
		TraceId:      "t1",
		Position:     "n1",
		BusinessData: data,
		Status:       model.NODE_STATUS_ARCHIVED,
		CreateAt:     now,
		UpdateAt:     now,
		ArchivedAt:   &now,
	}
}

func TestParse(t *testing.T) {
	cb, err := Parse(model.CallbackDef{GenericableId: "notify", Fitables: []string{"f"}, FilteredKeys: []string{"a"}})
	require.NoError(t, err)
	require.Equal(t, "notify", cb.Name)
	require.Equal(t, []string{"a"}, cb.FilteredKeys)

	_, err = Parse(model.CallbackDef{Name: "x"})
	require.ErrorIs(t, err, ErrInvalidCallback)
}

func TestDispatch(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, inv *remote.LocalInvoker){
		"filters business data":              testFilteredPayload,
		"sends everything when unfiltered":   testUnfilteredPayload,
		"retries within budget":              testRetryWithinBudget,
		"exhaustion yields callback error":   testExhaustion,
		"permanent failure is never retried": testPermanentFailure,
		"slow attempts time out":             testAttemptTimeout,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, remote.NewLocalInvoker())
		})
	}
}

func testFilteredPayload(t *testing.T, inv *remote.LocalInvoker) {
	var got model.CallbackPayload
	inv.Register("notify", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		got = payload.(model.CallbackPayload)
		require.Equal(t, []string{"f1"}, filter.FitableIDs)
		return map[string]any{"notified": true}, nil
	})
	d := NewDispatcher(inv, testPolicy)
	cb := &Callback{Name: "n", Type: "GENERAL", GenericableId: "notify", Fitables: []string{"f1"}, FilteredKeys: []string{"orderId", "missing"}}
	out, retry, err := d.Dispatch(context.Background(), cb, testContext(), 1)
	require.NoError(t, err)
	require.False(t, retry)
	require.Equal(t, map[string]any{"notified": true}, out)
	require.Equal(t, map[string]any{"orderId": "o-1"}, got.BusinessData)
	require.Equal(t, "c1", got.FlowContextId)
	require.Equal(t, "t1", got.TraceId)
	require.Equal(t, "n1", got.NodeId)
	require.Equal(t, model.NODE_STATUS_ARCHIVED, got.Status)
	require.NotNil(t, got.ArchivedAt)
}

func testUnfilteredPayload(t *testing.T, inv *remote.LocalInvoker) {
	var got model.CallbackPayload
	inv.Register("notify", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		got = payload.(model.CallbackPayload)
		return "ok", nil
	})
	d := NewDispatcher(inv, testPolicy)
	out, _, err := d.Dispatch(context.Background(), &Callback{GenericableId: "notify"}, testContext(), 1)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, map[string]any{"orderId": "o-1", "amount": 10, "secret": "x"}, got.BusinessData)
}

func testRetryWithinBudget(t *testing.T, inv *remote.LocalInvoker) {
	var calls int32
	inv.Register("notify", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("try again")
		}
		return nil, nil
	})
	d := NewDispatcher(inv, testPolicy)
	cb := &Callback{GenericableId: "notify"}
	for attempt := 1; attempt < 3; attempt++ {
		_, retry, err := d.Dispatch(context.Background(), cb, testContext(), attempt)
		require.Error(t, err)
		require.True(t, retry)
		var ce *Error
		require.False(t, errors.As(err, &ce))
	}
	_, retry, err := d.Dispatch(context.Background(), cb, testContext(), 3)
	require.NoError(t, err)
	require.False(t, retry)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func testExhaustion(t *testing.T, inv *remote.LocalInvoker) {
	var calls int32
	inv.Register("notify", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("down")
	})
	d := NewDispatcher(inv, testPolicy)
	cb := &Callback{Name: "audit", Type: "GENERAL", GenericableId: "notify", Fitables: []string{"a", "b"}}
	_, retry, err := d.Dispatch(context.Background(), cb, testContext(), testPolicy.Attempts)
	require.False(t, retry)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	require.Equal(t, "audit", ce.Name)
	require.Equal(t, "GENERAL", ce.TypeCode)
	require.Equal(t, []string{"a", "b"}, ce.FitableIDs)
	var re *remote.Error
	require.True(t, errors.As(err, &re))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func testPermanentFailure(t *testing.T, inv *remote.LocalInvoker) {
	inv.Register("notify", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		return nil, util.Permanent(errors.New("rejected"))
	})
	d := NewDispatcher(inv, testPolicy)
	_, retry, err := d.Dispatch(context.Background(), &Callback{GenericableId: "notify"}, testContext(), 1)
	require.False(t, retry)
	var ce *Error
	require.True(t, errors.As(err, &ce))
}

func testAttemptTimeout(t *testing.T, inv *remote.LocalInvoker) {
	inv.Register("notify", func(ctx context.Context, filter remote.Filter, payload any) (any, error) {
		time.Sleep(time.Second)
		return nil, nil
	})
	d := NewDispatcher(inv, util.RetryPolicy{Attempts: 2, Interval: time.Millisecond, Timeout: 20 * time.Millisecond})
	start := time.Now()
	_, retry, err := d.Dispatch(context.Background(), &Callback{GenericableId: "notify"}, testContext(), 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, retry)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}
