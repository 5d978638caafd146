package jaeger

import (
	"io"

	"github.com/wangshanqi84-gif/quiver/cores/env"
	"github.com/wangshanqi84-gif/quiver/cores/tracing"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

type Option func(o *options)

type options struct {
	addr string
}

// WithAddr 收集器地址 未设置时读取QVR_JAEGER_ADDR
func WithAddr(addr string) Option {
	return func(o *options) {
		o.addr = addr
	}
}

type Tracer struct {
	opentracing.Tracer
	closer io.Closer
}

var _ tracing.Tracer = (*Tracer)(nil)

func config(serviceName string, o options) jaegercfg.Configuration {
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 0,
		},
		Gen128Bit: true,
	}
	// 有收集器时全量采样
	if o.addr != "" {
		cfg.Sampler.Param = 1
		cfg.Reporter = &jaegercfg.ReporterConfig{
			CollectorEndpoint: o.addr,
		}
	}
	return cfg
}

func NewTracer(serviceName string, opts ...Option) (*Tracer, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.addr == "" {
		o.addr = env.GetEnv(env.QvrJaegerAddr)
	}
	tracer, closer, err := config(serviceName, o).NewTracer()
	if err != nil {
		return nil, errors.Wrap(err, "init jaeger tracer")
	}
	return &Tracer{
		Tracer: tracer,
		closer: closer,
	}, nil
}

func (t *Tracer) Close() error {
	return t.closer.Close()
}
