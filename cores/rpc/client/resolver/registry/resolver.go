package registry

import (
	"context"
	"strconv"
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"google.golang.org/grpc/attributes"
	"google.golang.org/grpc/resolver"
)

// WeightKey 合并分组时的权重 写入地址属性
type WeightKey struct{}

type registryResolver struct {
	ctx    context.Context
	cancel context.CancelFunc
	reg    registry.Registry
	key    *url.URL
	cc     resolver.ClientConn
	eps    []resolver.Address

	mu       sync.Mutex
	notified bool
}

var _ registry.NotifyListener = (*registryResolver)(nil)

// Notify 每次快照整体替换地址列表
func (r *registryResolver) Notify(_ *url.URL, urls []*url.URL) {
	addrs := Addresses(urls)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = true
	// 订阅结果为空时使用兜底配置
	if len(addrs) == 0 {
		if len(r.eps) == 0 {
			logger.Warn(r.ctx, "resolver receive empty endpoints, key:%s", r.key.SimpleString())
			return
		}
		addrs = r.eps
	}
	_ = r.cc.UpdateState(resolver.State{Addresses: addrs})
}

// fallback 首次快照未到达时先使用兜底配置
func (r *registryResolver) fallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notified || len(r.eps) == 0 {
		return
	}
	_ = r.cc.UpdateState(resolver.State{Addresses: r.eps})
}

func (r *registryResolver) ResolveNow(resolver.ResolveNowOptions) {}

func (r *registryResolver) Close() {
	defer r.cancel()
	if err := r.reg.Unsubscribe(context.Background(), r.key, r); err != nil {
		logger.Warn(r.ctx, "resolver unsubscribe error, key:%s, err:%v", r.key.SimpleString(), err)
	}
}

// Addresses 节点地址转换 参数写入属性
func Addresses(urls []*url.URL) []resolver.Address {
	addrs := make([]resolver.Address, 0, len(urls))
	for _, u := range urls {
		var a *attributes.Attributes
		for k, v := range u.Parameters {
			if a == nil {
				a = attributes.New(k, v)
			} else {
				a = a.WithValue(k, v)
			}
		}
		addr := resolver.Address{
			Addr:       u.Address(),
			ServerName: u.Path,
			Attributes: a,
		}
		if w, err := strconv.Atoi(u.Parameter(url.ParamWeight, "")); err == nil {
			addr.BalancerAttributes = attributes.New(WeightKey{}, w)
		}
		addrs = append(addrs, addr)
	}
	return addrs
}
