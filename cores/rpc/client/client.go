package client

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/rpc/client/resolver/direct"
	regResolver "github.com/wangshanqi84-gif/quiver/cores/rpc/client/resolver/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/balancer/roundrobin"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/resolver"
)

type Option func(o *clientOptions)

// WithEps 兜底endpoints
func WithEps(eps ...string) Option {
	return func(o *clientOptions) {
		o.eps = eps
	}
}

// WithRegistry 订阅注册中心 key为订阅地址(分组/服务路径)
func WithRegistry(reg registry.Registry, key *url.URL) Option {
	return func(o *clientOptions) {
		o.reg = reg
		o.key = key
	}
}

// WithTLS 加密传输设置
func WithTLS(tlsCfg *tls.Config) Option {
	return func(o *clientOptions) {
		o.tlsCfg = tlsCfg
	}
}

// WithUnaryInterceptor 拦截器
func WithUnaryInterceptor(in ...grpc.UnaryClientInterceptor) Option {
	return func(o *clientOptions) {
		o.ints = append(o.ints, in...)
	}
}

// WithOptions grpc option
func WithOptions(opts ...grpc.DialOption) Option {
	return func(o *clientOptions) {
		o.grpcOpts = append(o.grpcOpts, opts...)
	}
}

// WithBalancerName 负载均衡策略
func WithBalancerName(balancerName string) Option {
	return func(o *clientOptions) {
		o.balancerName = balancerName
	}
}

type clientOptions struct {
	eps          []string
	reg          registry.Registry
	key          *url.URL
	tlsCfg       *tls.Config
	ints         []grpc.UnaryClientInterceptor
	grpcOpts     []grpc.DialOption
	balancerName string
}

func DialContext(ctx context.Context, opts ...Option) (*grpc.ClientConn, error) {
	options := clientOptions{
		balancerName: roundrobin.Name,
	}
	for _, o := range opts {
		if o != nil {
			o(&options)
		}
	}
	builder, err := options.builder()
	if err != nil {
		return nil, err
	}
	grpcOpts := []grpc.DialOption{
		grpc.WithDefaultServiceConfig(fmt.Sprintf(`{"loadBalancingConfig": [{"%s":{}}]}`, options.balancerName)),
		grpc.WithChainUnaryInterceptor(options.ints...),
		grpc.WithResolvers(builder),
	}
	if options.tlsCfg != nil {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(credentials.NewTLS(options.tlsCfg)))
	} else {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	grpcOpts = append(grpcOpts, options.grpcOpts...)
	return grpc.DialContext(ctx, fmt.Sprintf("%s:///", builder.Scheme()), grpcOpts...)
}

func (o *clientOptions) builder() (resolver.Builder, error) {
	if o.reg != nil {
		if o.key == nil {
			return nil, errors.New("registry subscribe url is nil")
		}
		return regResolver.NewBuilder(o.reg, o.key, regResolver.WithEps(o.eps...)), nil
	}
	if len(o.eps) == 0 {
		return nil, errors.New("default endpoints is nil and registry is nil")
	}
	return direct.NewBuilder(direct.WithEps(o.eps...)), nil
}
