package registry

import (
	"context"

	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"

	"google.golang.org/grpc/resolver"
)

const name = "quiver"

type Option func(o *builder)

// WithEps 兜底endpoints 订阅结果为空时使用
func WithEps(eps ...string) Option {
	return func(b *builder) {
		b.eps = eps
	}
}

type builder struct {
	reg registry.Registry
	key *url.URL
	eps []string
}

// NewBuilder 由注册中心订阅结果驱动的resolver
func NewBuilder(reg registry.Registry, key *url.URL, opts ...Option) resolver.Builder {
	b := &builder{
		reg: reg,
		key: key.Copy(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *builder) Build(target resolver.Target, cc resolver.ClientConn, opts resolver.BuildOptions) (resolver.Resolver, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &registryResolver{
		ctx:    ctx,
		cancel: cancel,
		reg:    b.reg,
		key:    b.key,
		cc:     cc,
	}
	for _, ep := range b.eps {
		r.eps = append(r.eps, resolver.Address{Addr: ep})
	}
	if err := b.reg.Subscribe(ctx, b.key, r); err != nil {
		cancel()
		return nil, err
	}
	r.fallback()
	return r, nil
}

func (*builder) Scheme() string {
	return name
}
