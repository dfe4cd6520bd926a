package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Full method names.
const (
	MethodUnreadNotificationCount = "/" + ServiceName + "/UnreadNotificationCount"
	MethodApplicationStatus       = "/" + ServiceName + "/ApplicationStatus"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UnreadNotificationCount", Handler: unreadNotificationCountHandler},
		{MethodName: "ApplicationStatus", Handler: applicationStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/v1/marketplace.proto",
}

func unreadNotificationCountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketplaceServer).UnreadNotificationCount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodUnreadNotificationCount}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MarketplaceServer).UnreadNotificationCount(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func applicationStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketplaceServer).ApplicationStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodApplicationStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MarketplaceServer).ApplicationStatus(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
