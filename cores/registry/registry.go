package registry

import (
	"context"

	"github.com/wangshanqi84-gif/quiver/cores/url"
)

// NotifyListener 订阅方 接收生效的服务节点列表(整体替换)
type NotifyListener interface {
	Notify(registryURL *url.URL, urls []*url.URL)
}

// ServiceListener 原始服务节点变化
type ServiceListener interface {
	NotifyService(key *url.URL, urls []*url.URL)
}

// CommandListener 指令变化
type CommandListener interface {
	NotifyCommand(key *url.URL, command string)
}

/////////////////////////////////////////
// 注册中心后端 实现接口即可支持多种中间件
// v1 : etcd, consul, nacos, redis, memory
/////////////////////////////////////////

// Backend 注册中心后端
type Backend interface {
	Register(ctx context.Context, u *url.URL) error
	Unregister(ctx context.Context, u *url.URL) error
	SubscribeService(ctx context.Context, key *url.URL, listener ServiceListener) error
	UnsubscribeService(ctx context.Context, key *url.URL, listener ServiceListener) error
	SubscribeCommand(ctx context.Context, key *url.URL, listener CommandListener) error
	UnsubscribeCommand(ctx context.Context, key *url.URL, listener CommandListener) error
	DiscoverService(ctx context.Context, key *url.URL) ([]*url.URL, error)
	DiscoverCommand(ctx context.Context, key *url.URL) (string, error)
	Close() error
}

// Registry 订阅方视角的注册中心
type Registry interface {
	Register(ctx context.Context, u *url.URL) error
	Unregister(ctx context.Context, u *url.URL) error
	Subscribe(ctx context.Context, key *url.URL, listener NotifyListener) error
	Unsubscribe(ctx context.Context, key *url.URL, listener NotifyListener) error
	Discover(ctx context.Context, key *url.URL) ([]*url.URL, error)
}
