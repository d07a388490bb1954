package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/util"
	"go.opencensus.io/plugin/ocgrpc"
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const FITABLE_METADATA_KEY = "x-fitable-ids"

func methodName(serviceID string) string {
	return "/" + serviceID + "/Invoke"
}

func durationField(duration time.Duration) zapcore.Field {
	return zap.Int64("grpc.time_ns", duration.Nanoseconds())
}

// GrpcInvoker calls services through a broker speaking gRPC. Every call is
// a unary "/<service>/Invoke" carrying a google.protobuf.Value.
type GrpcInvoker struct {
	conn *grpc.ClientConn
}

var _ Invoker = new(GrpcInvoker)

func NewGrpcInvoker(target string, opts ...grpc.DialOption) (*GrpcInvoker, error) {
	log := logger.L().Named("remote")
	zapOpts := []grpc_zap.Option{
		grpc_zap.WithDurationField(durationField),
	}
	if err := view.Register(ocgrpc.DefaultClientViews...); err != nil {
		return nil, err
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(
			grpc_zap.UnaryClientInterceptor(log, zapOpts...),
		)),
		grpc.WithStatsHandler(&ocgrpc.ClientHandler{}),
	}
	dialOpts = append(dialOpts, opts...)
	conn, err := grpc.Dial(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &GrpcInvoker{conn: conn}, nil
}

func (g *GrpcInvoker) Invoke(ctx context.Context, serviceID string, filter Filter, payload any) Result {
	in, err := toWire(payload)
	if err != nil {
		return Result{Err: newError(serviceID, fmt.Errorf("encode payload: %w", err))}
	}
	if len(filter.FitableIDs) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, FITABLE_METADATA_KEY, strings.Join(filter.FitableIDs, ","))
	}
	out := new(structpb.Value)
	if err := g.conn.Invoke(ctx, methodName(serviceID), in, out); err != nil {
		return Result{Err: fromStatus(serviceID, err)}
	}
	return Result{Value: out.AsInterface()}
}

func (g *GrpcInvoker) InvokeAsync(ctx context.Context, serviceID string, filter Filter, payload any) <-chan Result {
	return async(ctx, g, serviceID, filter, payload)
}

func (g *GrpcInvoker) Close() error {
	return g.conn.Close()
}

// toWire converts plain values directly and anything else through its JSON
// form.
func toWire(payload any) (*structpb.Value, error) {
	if v, err := util.ToProtoValue(payload); err == nil {
		return v, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return util.ToProtoValue(generic)
}
