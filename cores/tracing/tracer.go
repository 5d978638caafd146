package tracing

import (
	"io"

	"github.com/opentracing/opentracing-go"
)

// Tracer 链路追踪 客户端拦截器使用
type Tracer interface {
	opentracing.Tracer
	io.Closer
}

type noopTracer struct {
	opentracing.NoopTracer
}

func (noopTracer) Close() error {
	return nil
}

// Noop 未配置收集器时使用
func Noop() Tracer {
	return noopTracer{}
}
