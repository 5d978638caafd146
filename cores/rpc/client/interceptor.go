package client

import (
	"context"
	"strings"
	"time"

	gCtx "github.com/wangshanqi84-gif/quiver/cores/context"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

///////////////////////////////////////////
// 客户端拦截器
///////////////////////////////////////////

// mdCarrier opentracing TextMap载体
type mdCarrier metadata.MD

func (c mdCarrier) Set(key, val string) {
	metadata.MD(c).Set(key, val)
}

func (c mdCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, vs := range c {
		for _, v := range vs {
			if err := handler(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func TracingClientUnaryInterceptor(tracer opentracing.Tracer) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, request, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var parentCtx opentracing.SpanContext
		if parentSpan := opentracing.SpanFromContext(ctx); parentSpan != nil {
			parentCtx = parentSpan.Context()
		}
		span := tracer.StartSpan(
			method,
			opentracing.ChildOf(parentCtx),
			opentracing.Tag{Key: string(ext.Component), Value: "gRPC Client"},
			ext.SpanKindRPCClient,
		)
		defer span.Finish()

		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			md = metadata.New(nil)
		} else {
			md = md.Copy()
		}
		if err := tracer.Inject(span.Context(), opentracing.TextMap, mdCarrier(md)); err == nil {
			ctx = metadata.NewOutgoingContext(ctx, md)
		}
		ctx = opentracing.ContextWithSpan(ctx, span)
		err := invoker(ctx, method, request, reply, cc, opts...)
		if err != nil {
			ext.Error.Set(span, true)
		}
		return err
	}
}

// CallInfoClientUnaryInterceptor 日志携带服务/方法/分组
func CallInfoClientUnaryInterceptor(key *url.URL) grpc.UnaryClientInterceptor {
	group := ""
	if key != nil {
		group = key.Group()
	}
	return func(ctx context.Context, method string, request, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		service, name := splitMethod(method)
		ctx = gCtx.NewCallContext(ctx, gCtx.CallInfo{Service: service, Method: name, Group: group})
		start := time.Now()
		err := invoker(ctx, method, request, reply, cc, opts...)
		if err != nil {
			logger.Warn(ctx, "rpc call failed, cost:%v, err:%v", time.Since(start), err)
		}
		return err
	}
}

// splitMethod "/pkg.Service/Method"
func splitMethod(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[:i], fullMethod[i+1:]
	}
	return fullMethod, ""
}

func TimeoutClientUnaryInterceptor(timeout time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, request, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return invoker(ctx, method, request, reply, cc, opts...)
	}
}

// RetryClientUnaryInterceptor 仅重试节点不可用及超时
func RetryClientUnaryInterceptor(maxAttempts int) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, request, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var err error
		for att := 0; att <= maxAttempts; att++ {
			err = invoker(ctx, method, request, reply, cc, opts...)
			if err == nil || ctx.Err() != nil {
				break
			}
			code := status.Code(err)
			if code != codes.Unavailable && code != codes.DeadlineExceeded {
				break
			}
		}
		return err
	}
}
