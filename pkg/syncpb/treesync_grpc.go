package syncpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Kept in the layout protoc-gen-go-grpc produces for treesync.proto.

const _ = grpc.SupportPackageIsVersion9

const (
	TreeSync_GetManifest_FullMethodName = "/inexor.tree.v1.TreeSync/GetManifest"
	TreeSync_Synchronize_FullMethodName = "/inexor.tree.v1.TreeSync/Synchronize"
)

// TreeSyncClient is the client API for TreeSync service.
type TreeSyncClient interface {
	GetManifest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Synchronize(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error)
}

type treeSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewTreeSyncClient(cc grpc.ClientConnInterface) TreeSyncClient {
	return &treeSyncClient{cc}
}

func (c *treeSyncClient) GetManifest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, TreeSync_GetManifest_FullMethodName, in, out, cOpts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *treeSyncClient) Synchronize(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &TreeSync_ServiceDesc.Streams[0], TreeSync_Synchronize_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	return x, nil
}

// TreeSync_SynchronizeClient is the client side of the Synchronize stream
type TreeSync_SynchronizeClient = grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]

// TreeSyncServer is the server API for TreeSync service.
// All implementations must embed UnimplementedTreeSyncServer
// for forward compatibility.
type TreeSyncServer interface {
	GetManifest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Synchronize(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error
	mustEmbedUnimplementedTreeSyncServer()
}

// UnimplementedTreeSyncServer must be embedded to have
// forward compatible implementations.
type UnimplementedTreeSyncServer struct{}

func (UnimplementedTreeSyncServer) GetManifest(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetManifest not implemented")
}
func (UnimplementedTreeSyncServer) Synchronize(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method Synchronize not implemented")
}
func (UnimplementedTreeSyncServer) mustEmbedUnimplementedTreeSyncServer() {}
func (UnimplementedTreeSyncServer) testEmbeddedByValue()                  {}

// UnsafeTreeSyncServer may be embedded to opt out of forward compatibility for this service.
type UnsafeTreeSyncServer interface {
	mustEmbedUnimplementedTreeSyncServer()
}

func RegisterTreeSyncServer(s grpc.ServiceRegistrar, srv TreeSyncServer) {
	if t, ok := srv.(interface{ testEmbeddedByValue() }); ok {
		t.testEmbeddedByValue()
	}
	s.RegisterService(&TreeSync_ServiceDesc, srv)
}

func _TreeSync_GetManifest_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TreeSyncServer).GetManifest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TreeSync_GetManifest_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TreeSyncServer).GetManifest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _TreeSync_Synchronize_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TreeSyncServer).Synchronize(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// TreeSync_SynchronizeServer is the server side of the Synchronize stream
type TreeSync_SynchronizeServer = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]

// TreeSync_ServiceDesc is the grpc.ServiceDesc for TreeSync service.
var TreeSync_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "inexor.tree.v1.TreeSync",
	HandlerType: (*TreeSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetManifest",
			Handler:    _TreeSync_GetManifest_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Synchronize",
			Handler:       _TreeSync_Synchronize_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "pkg/syncpb/treesync.proto",
}
