package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "refraction.v1.SimulationControl"

// ControlServer is the server API for the SimulationControl service.
//
// Requests and responses are protobuf well-known types: parameters travel as
// google.protobuf.Struct fields, parameterless calls use google.protobuf.Empty.
type ControlServer interface {
	SetSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetObserver(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfigureLayers(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	MoveMoon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetView(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	RenderFrame(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetApparentSource(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ResetHits(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetScene(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// FullMethod returns "/refraction.v1.SimulationControl/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty    { return new(emptypb.Empty) }

// unary builds the method descriptor for one RPC, in the shape protoc-gen-go-grpc
// emits for its handlers.
func unary[Req, Resp proto.Message](method string, newReq func() Req, call func(ControlServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ControlServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SimulationControl_ServiceDesc is the grpc.ServiceDesc for the
// SimulationControl service.
var SimulationControl_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SetSource", newStruct, ControlServer.SetSource),
		unary("SetObserver", newStruct, ControlServer.SetObserver),
		unary("ConfigureLayers", newStruct, ControlServer.ConfigureLayers),
		unary("MoveMoon", newStruct, ControlServer.MoveMoon),
		unary("SetView", newStruct, ControlServer.SetView),
		unary("ResetView", newEmpty, ControlServer.ResetView),
		unary("RenderFrame", newEmpty, ControlServer.RenderFrame),
		unary("GetApparentSource", newEmpty, ControlServer.GetApparentSource),
		unary("ResetHits", newEmpty, ControlServer.ResetHits),
		unary("GetScene", newEmpty, ControlServer.GetScene),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&SimulationControl_ServiceDesc, srv)
}
