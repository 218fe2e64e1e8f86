package remote

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName = "arcflow.remote.Channel"
	sendMethod  = "/" + serviceName + "/Send"
)

// dispatchHandler is the Server's send implementation, wired in as the
// grpc.MethodDesc handler below.
type dispatchHandler interface {
	handleSend(ctx context.Context, envelope []byte) ([]byte, error)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req []byte
	if err := dec(&req); err != nil {
		return nil, err
	}
	h := srv.(dispatchHandler)
	if interceptor == nil {
		return h.handleSend(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return h.handleSend(ctx, req.([]byte))
	}
	return interceptor(ctx, req, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*dispatchHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "arcflow/remote.proto",
}
