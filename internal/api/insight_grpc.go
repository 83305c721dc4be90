package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully-qualified method names of unifyiq.v1.InsightService.
const (
	InsightServiceName               = "unifyiq.v1.InsightService"
	InsightService_Query_FullMethod  = "/unifyiq.v1.InsightService/Query"
	InsightService_Reload_FullMethod = "/unifyiq.v1.InsightService/Reload"
)

// InsightServiceServer is the server API for unifyiq.v1.InsightService. Messages are
// well-known Struct types so the service carries no generated code.
type InsightServiceServer interface {
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reload(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedInsightServiceServer can be embedded for forward compatibility.
type UnimplementedInsightServiceServer struct{}

func (UnimplementedInsightServiceServer) Query(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Query not implemented")
}

func (UnimplementedInsightServiceServer) Reload(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Reload not implemented")
}

// RegisterInsightServiceServer attaches srv to s.
func RegisterInsightServiceServer(s grpc.ServiceRegistrar, srv InsightServiceServer) {
	s.RegisterService(&InsightService_ServiceDesc, srv)
}

func _InsightService_Query_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InsightServiceServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InsightService_Query_FullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InsightServiceServer).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _InsightService_Reload_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InsightServiceServer).Reload(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InsightService_Reload_FullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InsightServiceServer).Reload(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// InsightService_ServiceDesc describes unifyiq.v1.InsightService.
var InsightService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: InsightServiceName,
	HandlerType: (*InsightServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: _InsightService_Query_Handler},
		{MethodName: "Reload", Handler: _InsightService_Reload_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "unifyiq/v1/insight.proto",
}

// InsightServiceClient is the client API for unifyiq.v1.InsightService.
type InsightServiceClient interface {
	Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Reload(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type insightServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInsightServiceClient wraps a client connection.
func NewInsightServiceClient(cc grpc.ClientConnInterface) InsightServiceClient {
	return &insightServiceClient{cc: cc}
}

func (c *insightServiceClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, InsightService_Query_FullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *insightServiceClient) Reload(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, InsightService_Reload_FullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
