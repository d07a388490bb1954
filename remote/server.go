package remote

import (
	"strings"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_ctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	"github.com/mohitkumar/waterflow/logger"
	"go.opencensus.io/plugin/ocgrpc"
	"go.opencensus.io/stats/view"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewGrpcServer exposes the handlers of a LocalInvoker under the same
// "/<service>/Invoke" convention GrpcInvoker calls.
func NewGrpcServer(local *LocalInvoker) (*grpc.Server, error) {
	log := logger.L().Named("server")
	zapOpts := []grpc_zap.Option{
		grpc_zap.WithDurationField(durationField),
	}
	if err := view.Register(ocgrpc.DefaultServerViews...); err != nil {
		return nil, err
	}
	gsrv := grpc.NewServer(
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_ctxtags.StreamServerInterceptor(),
			grpc_zap.StreamServerInterceptor(log, zapOpts...),
		)),
		grpc.StatsHandler(&ocgrpc.ServerHandler{}),
		grpc.UnknownServiceHandler(func(srv any, stream grpc.ServerStream) error {
			return serve(local, stream)
		}),
	)
	return gsrv, nil
}

func serve(local *LocalInvoker, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method on stream")
	}
	serviceID, ok := serviceFromMethod(method)
	if !ok {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	in := new(structpb.Value)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var filter Filter
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		for _, v := range md.Get(FITABLE_METADATA_KEY) {
			filter.FitableIDs = append(filter.FitableIDs, strings.Split(v, ",")...)
		}
	}
	res := local.Invoke(stream.Context(), serviceID, filter, in.AsInterface())
	if res.Err != nil {
		return newError(serviceID, res.Err)
	}
	out, err := toWire(res.Value)
	if err != nil {
		return status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return stream.SendMsg(out)
}

func serviceFromMethod(method string) (string, bool) {
	trimmed := strings.TrimPrefix(method, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 || trimmed[idx+1:] != "Invoke" {
		return "", false
	}
	return trimmed[:idx], true
}
