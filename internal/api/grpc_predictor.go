package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roundcast/roundcast/internal/utils"
)

// PredictorServiceName is the fully qualified gRPC service name.
const PredictorServiceName = "roundcast.v1.Predictor"

// Full method names, for clients invoking the service without stubs.
const (
	PredictMethod = "/" + PredictorServiceName + "/Predict"
	HistoryMethod = "/" + PredictorServiceName + "/History"
)

// PredictorServer is the gRPC facade over a Predictor. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the
// HTTP API.
type PredictorServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type predictorService struct {
	predictor Predictor
}

// NewPredictorService adapts a Predictor to the gRPC surface.
func NewPredictorService(p Predictor) PredictorServer {
	return &predictorService{predictor: p}
}

func (s *predictorService) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	strategy := ""
	if v, ok := req.GetFields()["strategy"]; ok {
		strategy = v.GetStringValue()
	}
	resp, err := s.predictor.Cycle(ctx, strategy)
	if err != nil {
		return nil, grpcStatus(err)
	}
	return toStruct(resp)
}

func (s *predictorService) History(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(historyResponse(s.predictor))
}

// RegisterPredictorServer attaches the service to a gRPC registrar.
func RegisterPredictorServer(r grpc.ServiceRegistrar, srv PredictorServer) {
	r.RegisterService(&predictorServiceDesc, srv)
}

var predictorServiceDesc = grpc.ServiceDesc{
	ServiceName: PredictorServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "History", Handler: historyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roundcast/v1/predictor.proto",
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func historyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HistoryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).History(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func grpcStatus(err error) error {
	switch utils.KindOf(err) {
	case utils.KindInvalidArgument:
		return status.Error(codes.InvalidArgument, err.Error())
	case utils.KindUpstream:
		return status.Error(codes.Unavailable, err.Error())
	case utils.KindValidation:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
