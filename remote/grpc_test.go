package remote

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/test/bufconn"
)

func setupGrpc(t *testing.T) *GrpcInvoker {
	t.Helper()
	local := NewLocalInvoker()
	local.Register("order.price", func(ctx context.Context, filter Filter, payload any) (any, error) {
		in := payload.(map[string]any)
		return map[string]any{
			"total":    in["qty"].(float64) * 2.5,
			"fitables": filter.FitableIDs,
		}, nil
	})
	local.Register("order.reject", func(ctx context.Context, filter Filter, payload any) (any, error) {
		return nil, &Error{ServiceID: "order.reject", Code: codes.FailedPrecondition, Message: "stock exhausted"}
	})
	local.Register("order.slow", func(ctx context.Context, filter Filter, payload any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	srv, err := NewGrpcServer(local)
	require.NoError(t, err)
	lis := bufconn.Listen(1024 * 1024)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	inv, err := NewGrpcInvoker("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inv.Close() })
	return inv
}

func TestGrpcInvoker(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, inv *GrpcInvoker){
		"round trips value and fitables": testGrpcValue,
		"translates status details":      testGrpcStatus,
		"unknown service is not found":   testGrpcNotFound,
		"deadline is surfaced":           testGrpcDeadline,
		"struct payload is sent as json": testGrpcStructPayload,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, setupGrpc(t))
		})
	}
}

func testGrpcValue(t *testing.T, inv *GrpcInvoker) {
	res := inv.Invoke(context.Background(), "order.price", Filter{FitableIDs: []string{"f1", "f2"}}, map[string]any{"qty": 4})
	require.NoError(t, res.Err)
	require.Equal(t, map[string]any{"total": 10.0, "fitables": []any{"f1", "f2"}}, res.Value)
}

func testGrpcStatus(t *testing.T, inv *GrpcInvoker) {
	res := inv.Invoke(context.Background(), "order.reject", Filter{}, map[string]any{})
	var re *Error
	require.True(t, errors.As(res.Err, &re))
	require.Equal(t, codes.FailedPrecondition, re.Code)
	require.Equal(t, "stock exhausted", re.Message)
	require.Equal(t, "order.reject", re.ServiceID)
}

func testGrpcNotFound(t *testing.T, inv *GrpcInvoker) {
	res := inv.Invoke(context.Background(), "order.missing", Filter{}, nil)
	require.ErrorIs(t, res.Err, ErrServiceNotFound)
}

func testGrpcDeadline(t *testing.T, inv *GrpcInvoker) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := <-inv.InvokeAsync(ctx, "order.slow", Filter{}, nil)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func testGrpcStructPayload(t *testing.T, inv *GrpcInvoker) {
	type order struct {
		Qty int `json:"qty"`
	}
	res := inv.Invoke(context.Background(), "order.price", Filter{}, order{Qty: 2})
	require.NoError(t, res.Err)
	require.Equal(t, 5.0, res.Value.(map[string]any)["total"])
}
