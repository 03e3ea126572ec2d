package luxapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "luxpipe.LightService"

const (
	methodGetCurrentLight = "GetCurrentLight"
	methodGetHistory      = "GetHistory"
	methodRecordReading   = "RecordReading"
)

// LightServiceServer is the server API for luxpipe.LightService.
type LightServiceServer interface {
	GetCurrentLight(context.Context, *GetCurrentLightRequest) (*GetCurrentLightResponse, error)
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	RecordReading(context.Context, *RecordReadingRequest) (*RecordReadingResponse, error)
}

// UnimplementedLightServiceServer can be embedded to stay forward compatible.
type UnimplementedLightServiceServer struct{}

func (UnimplementedLightServiceServer) GetCurrentLight(context.Context, *GetCurrentLightRequest) (*GetCurrentLightResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCurrentLight not implemented")
}

func (UnimplementedLightServiceServer) GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHistory not implemented")
}

func (UnimplementedLightServiceServer) RecordReading(context.Context, *RecordReadingRequest) (*RecordReadingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RecordReading not implemented")
}

// ServiceDesc is the grpc.ServiceDesc for luxpipe.LightService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LightServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodGetCurrentLight,
			Handler:    unaryHandler(methodGetCurrentLight, LightServiceServer.GetCurrentLight),
		},
		{
			MethodName: methodGetHistory,
			Handler:    unaryHandler(methodGetHistory, LightServiceServer.GetHistory),
		},
		{
			MethodName: methodRecordReading,
			Handler:    unaryHandler(methodRecordReading, LightServiceServer.RecordReading),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "luxapi",
}

// RegisterLightServiceServer registers srv on s.
func RegisterLightServiceServer(s grpc.ServiceRegistrar, srv LightServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](
	method string,
	call func(LightServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LightServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LightServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LightServiceClient is the client API for luxpipe.LightService.
type LightServiceClient interface {
	GetCurrentLight(ctx context.Context, in *GetCurrentLightRequest, opts ...grpc.CallOption) (*GetCurrentLightResponse, error)
	GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error)
	RecordReading(ctx context.Context, in *RecordReadingRequest, opts ...grpc.CallOption) (*RecordReadingResponse, error)
}

type lightServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLightServiceClient returns a client that speaks the JSON codec over cc.
func NewLightServiceClient(cc grpc.ClientConnInterface) LightServiceClient {
	return &lightServiceClient{cc: cc}
}

func (c *lightServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *lightServiceClient) GetCurrentLight(ctx context.Context, in *GetCurrentLightRequest, opts ...grpc.CallOption) (*GetCurrentLightResponse, error) {
	out := new(GetCurrentLightResponse)
	if err := c.invoke(ctx, methodGetCurrentLight, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lightServiceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	out := new(GetHistoryResponse)
	if err := c.invoke(ctx, methodGetHistory, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lightServiceClient) RecordReading(ctx context.Context, in *RecordReadingRequest, opts ...grpc.CallOption) (*RecordReadingResponse, error) {
	out := new(RecordReadingResponse)
	if err := c.invoke(ctx, methodRecordReading, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
