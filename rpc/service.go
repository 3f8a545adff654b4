package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "depthmonitor.MarketDepthService"

// MarketDepthServer is the read-only surface over the monitored books.
// Requests and responses are google.protobuf.Struct messages.
type MarketDepthServer interface {
	GetBookSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFilteredOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBandRatios(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWarmupStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrderBookSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(srv MarketDepthServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketDepthServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MarketDepthServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketDepthServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBookSummary",
			Handler:    unaryHandler("GetBookSummary", MarketDepthServer.GetBookSummary),
		},
		{
			MethodName: "GetFilteredOrders",
			Handler:    unaryHandler("GetFilteredOrders", MarketDepthServer.GetFilteredOrders),
		},
		{
			MethodName: "GetBandRatios",
			Handler:    unaryHandler("GetBandRatios", MarketDepthServer.GetBandRatios),
		},
		{
			MethodName: "GetWarmupStatus",
			Handler:    unaryHandler("GetWarmupStatus", MarketDepthServer.GetWarmupStatus),
		},
		{
			MethodName: "GetOrderBookSnapshot",
			Handler:    unaryHandler("GetOrderBookSnapshot", MarketDepthServer.GetOrderBookSnapshot),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "depthmonitor/market_depth.proto",
}

func RegisterMarketDepthServer(s grpc.ServiceRegistrar, srv MarketDepthServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// MarketDepthClient calls the service over any client connection.
type MarketDepthClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketDepthClient(cc grpc.ClientConnInterface) *MarketDepthClient {
	return &MarketDepthClient{cc: cc}
}

func (c *MarketDepthClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
