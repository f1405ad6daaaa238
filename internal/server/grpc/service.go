package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the admin service.
const ServiceName = "resumegate.admin.v1.AdminService"

// AdminServer is the server side of the admin service. All messages are
// protobuf well-known types.
type AdminServer interface {
	GetAttempts(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ResetAttempts(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ListLocked(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	SweepExpired(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	ListVersions(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	ListObjects(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAttempts", Handler: unary("GetAttempts", newStringValue, AdminServer.GetAttempts)},
		{MethodName: "ResetAttempts", Handler: unary("ResetAttempts", newStringValue, AdminServer.ResetAttempts)},
		{MethodName: "ListLocked", Handler: unary("ListLocked", newEmpty, AdminServer.ListLocked)},
		{MethodName: "SweepExpired", Handler: unary("SweepExpired", newEmpty, AdminServer.SweepExpired)},
		{MethodName: "ListVersions", Handler: unary("ListVersions", newEmpty, AdminServer.ListVersions)},
		{MethodName: "ListObjects", Handler: unary("ListObjects", newEmpty, AdminServer.ListObjects)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "resumegate/admin/v1/admin.proto",
}

// RegisterAdminServer registers srv on s.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

func newStringValue() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newEmpty() *emptypb.Empty                { return &emptypb.Empty{} }

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the method handler that protoc-gen-go-grpc would generate.
func unary[Req proto.Message, Resp any](
	name string,
	newReq func() Req,
	call func(AdminServer, context.Context, Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AdminClient calls the admin service over cc.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) GetAttempts(ctx context.Context, clientID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, fullMethod("GetAttempts"), wrapperspb.String(clientID), out, opts...)
	return out, err
}

func (c *AdminClient) ResetAttempts(ctx context.Context, clientID string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("ResetAttempts"), wrapperspb.String(clientID), new(emptypb.Empty), opts...)
}

func (c *AdminClient) ListLocked(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	err := c.cc.Invoke(ctx, fullMethod("ListLocked"), new(emptypb.Empty), out, opts...)
	return out, err
}

func (c *AdminClient) SweepExpired(ctx context.Context, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, fullMethod("SweepExpired"), new(emptypb.Empty), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *AdminClient) ListVersions(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	err := c.cc.Invoke(ctx, fullMethod("ListVersions"), new(emptypb.Empty), out, opts...)
	return out, err
}

// ListObjects lists the file store with a "tracked" flag per object.
func (c *AdminClient) ListObjects(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	err := c.cc.Invoke(ctx, fullMethod("ListObjects"), new(emptypb.Empty), out, opts...)
	return out, err
}
