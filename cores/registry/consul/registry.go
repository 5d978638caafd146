// Package consul 基于consul的注册中心后端
// 服务名为path tag为group 节点url放在meta中 指令存放在KV
package consul

import (
	"context"
	"fmt"
	"strings"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
)

const (
	_metaURL   = "url"
	_metaGroup = "group"
)

type Option func(o *options)

type options struct {
	ctx      context.Context
	root     string
	waitTime time.Duration
}

func Context(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Root 指令KV根路径 默认/quiver
func Root(root string) Option {
	return func(o *options) { o.root = root }
}

// WaitTime 阻塞查询等待时间
func WaitTime(d time.Duration) Option {
	return func(o *options) { o.waitTime = d }
}

type Backend struct {
	opts *options
	cli  *api.Client

	serviceHub *registry.Hub[registry.ServiceListener]
	commandHub *registry.Hub[registry.CommandListener]
}

var _ registry.Backend = (*Backend)(nil)

func New(client *api.Client, opts ...Option) *Backend {
	op := &options{
		ctx:      context.Background(),
		root:     registry.DefaultRoot,
		waitTime: 30 * time.Second,
	}
	for _, o := range opts {
		if o != nil {
			o(op)
		}
	}
	return &Backend{
		opts:       op,
		cli:        client,
		serviceHub: registry.NewHub[registry.ServiceListener](op.ctx),
		commandHub: registry.NewHub[registry.CommandListener](op.ctx),
	}
}

func backendError(err error, format string, args ...interface{}) error {
	return gErrors.Framework(gErrors.ErrBackend, "consul", errors.Wrapf(err, format, args...))
}

func serviceID(u *url.URL) string {
	return fmt.Sprintf("%s-%s-%s", u.Group(), u.Path, u.Address())
}

// registration 节点注册信息 tcp健康检查
func registration(u *url.URL) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      serviceID(u),
		Name:    u.Path,
		Address: u.Host,
		Port:    u.Port,
		Tags:    []string{u.Group()},
		Meta: map[string]string{
			_metaURL:   u.String(),
			_metaGroup: u.Group(),
		},
		Check: &api.AgentServiceCheck{
			TCP:                            u.Address(),
			Interval:                       fmt.Sprintf("%ds", 10),
			DeregisterCriticalServiceAfter: fmt.Sprintf("%ds", 300),
			Timeout:                        "5s",
		},
	}
}

// kvKey consul的key不以/开头
func kvKey(path string) string {
	return strings.TrimLeft(path, "/")
}

func (b *Backend) Register(_ context.Context, u *url.URL) error {
	if err := b.cli.Agent().ServiceRegister(registration(u)); err != nil {
		return backendError(err, "register %s", serviceID(u))
	}
	return nil
}

func (b *Backend) Unregister(_ context.Context, u *url.URL) error {
	if err := b.cli.Agent().ServiceDeregister(serviceID(u)); err != nil {
		return backendError(err, "deregister %s", serviceID(u))
	}
	return nil
}

func (b *Backend) SubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	nodeKey := registry.ServicePath(b.opts.root, key)
	service, group := key.Path, key.Group()
	b.serviceHub.Add(nodeKey, key.Copy(), l, func(ctx context.Context) {
		var index uint64
		for ctx.Err() == nil {
			urls, meta, err := b.health(ctx, service, group, index)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn(ctx, "consul watch service failed, service:%s, err:%v", service, err)
					sleep(ctx, time.Second)
				}
				continue
			}
			if meta.LastIndex == index {
				continue
			}
			index = meta.LastIndex
			for _, s := range b.serviceHub.Subscriptions(nodeKey) {
				s.Listener.NotifyService(s.Key, urls)
			}
		}
	})
	return nil
}

func (b *Backend) UnsubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	b.serviceHub.Remove(registry.ServicePath(b.opts.root, key), l)
	return nil
}

func (b *Backend) SubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	path := kvKey(registry.CommandPath(b.opts.root, key))
	b.commandHub.Add(path, key.Copy(), l, func(ctx context.Context) {
		var index uint64
		for ctx.Err() == nil {
			command, meta, err := b.kv(ctx, path, index)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn(ctx, "consul watch command failed, key:%s, err:%v", path, err)
					sleep(ctx, time.Second)
				}
				continue
			}
			if meta.LastIndex == index {
				continue
			}
			index = meta.LastIndex
			for _, s := range b.commandHub.Subscriptions(path) {
				s.Listener.NotifyCommand(s.Key, command)
			}
		}
	})
	return nil
}

func (b *Backend) UnsubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	b.commandHub.Remove(kvKey(registry.CommandPath(b.opts.root, key)), l)
	return nil
}

func (b *Backend) DiscoverService(ctx context.Context, key *url.URL) ([]*url.URL, error) {
	urls, _, err := b.health(ctx, key.Path, key.Group(), 0)
	return urls, err
}

func (b *Backend) DiscoverCommand(ctx context.Context, key *url.URL) (string, error) {
	command, _, err := b.kv(ctx, kvKey(registry.CommandPath(b.opts.root, key)), 0)
	return command, err
}

// health 查询健康节点 index非0时阻塞等待变化
func (b *Backend) health(ctx context.Context, service string, group string, index uint64) ([]*url.URL, *api.QueryMeta, error) {
	opts := (&api.QueryOptions{WaitIndex: index, WaitTime: b.opts.waitTime}).WithContext(ctx)
	entries, meta, err := b.cli.Health().Service(service, group, true, opts)
	if err != nil {
		return nil, nil, backendError(err, "health service %s", service)
	}
	values := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Service == nil {
			continue
		}
		if v, ok := entry.Service.Meta[_metaURL]; ok {
			values = append(values, v)
		}
	}
	return registry.ParseNodes(values), meta, nil
}

func (b *Backend) kv(ctx context.Context, key string, index uint64) (string, *api.QueryMeta, error) {
	opts := (&api.QueryOptions{WaitIndex: index, WaitTime: b.opts.waitTime}).WithContext(ctx)
	pair, meta, err := b.cli.KV().Get(key, opts)
	if err != nil {
		return "", nil, backendError(err, "get kv %s", key)
	}
	if pair == nil {
		return "", meta, nil
	}
	return string(pair.Value), meta, nil
}

// SetCommand 写入分组指令 空字符串删除
func (b *Backend) SetCommand(ctx context.Context, group string, command string) error {
	key := kvKey(registry.CommandPath(b.opts.root, url.New("", "", 0, "", map[string]string{url.ParamGroup: group})))
	opts := (&api.WriteOptions{}).WithContext(ctx)
	var err error
	if command == "" {
		_, err = b.cli.KV().Delete(key, opts)
	} else {
		_, err = b.cli.KV().Put(&api.KVPair{Key: key, Value: []byte(command)}, opts)
	}
	if err != nil {
		return backendError(err, "set command %s", key)
	}
	return nil
}

func (b *Backend) Close() error {
	b.serviceHub.Close()
	b.commandHub.Close()
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
