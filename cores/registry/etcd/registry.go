// Package etcd 基于etcd v3的注册中心后端
package etcd

import (
	"context"
	"sync"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type Option func(o *options)

type options struct {
	ctx      context.Context
	root     string
	ttl      time.Duration
	maxRetry int
}

func Context(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Root 根路径 默认/quiver
func Root(root string) Option {
	return func(o *options) { o.root = root }
}

func TTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func MaxRetry(num int) Option {
	return func(o *options) { o.maxRetry = num }
}

type Backend struct {
	opts   *options
	client *clientv3.Client
	kv     clientv3.KV

	serviceHub *registry.Hub[registry.ServiceListener]
	commandHub *registry.Hub[registry.CommandListener]

	mu    sync.Mutex
	nodes map[string]context.CancelFunc // 节点路径 => 停止续期

	ctx    context.Context
	cancel context.CancelFunc
}

var _ registry.Backend = (*Backend)(nil)

func New(client *clientv3.Client, opts ...Option) *Backend {
	op := &options{
		ctx:      context.Background(),
		root:     registry.DefaultRoot,
		ttl:      _defaultLeaseTTL,
		maxRetry: _defaultRetryTimes,
	}
	for _, o := range opts {
		if o != nil {
			o(op)
		}
	}
	b := &Backend{
		opts:   op,
		client: client,
		kv:     clientv3.NewKV(client),
		nodes:  make(map[string]context.CancelFunc),
	}
	b.ctx, b.cancel = context.WithCancel(op.ctx)
	b.serviceHub = registry.NewHub[registry.ServiceListener](b.ctx)
	b.commandHub = registry.NewHub[registry.CommandListener](b.ctx)
	return b
}

func backendError(err error, format string, args ...interface{}) error {
	return gErrors.Framework(gErrors.ErrBackend, "etcd", errors.Wrapf(err, format, args...))
}

// Register 服务注册 租约到期前自动续期
func (b *Backend) Register(ctx context.Context, u *url.URL) error {
	key := registry.NodePath(b.opts.root, u)
	value := u.String()
	leaseID, err := b.registerKV(ctx, key, value)
	if err != nil {
		return backendError(err, "register %s", key)
	}
	tctx, cancel := context.WithCancel(b.ctx)
	b.mu.Lock()
	if old, ok := b.nodes[key]; ok {
		old()
	}
	b.nodes[key] = cancel
	b.mu.Unlock()
	go b.doTTL(tctx, leaseID, key, value)
	return nil
}

// 注册流程
func (b *Backend) registerKV(ctx context.Context, key string, value string) (clientv3.LeaseID, error) {
	// 有效期
	grant, err := b.client.Grant(ctx, int64(b.opts.ttl.Seconds()))
	if err != nil {
		return 0, err
	}
	if _, err = b.kv.Put(ctx, key, value, clientv3.WithLease(grant.ID)); err != nil {
		return 0, err
	}
	return grant.ID, nil
}

// 定时续期 租约失效后重新注册
func (b *Backend) doTTL(ctx context.Context, leaseID clientv3.LeaseID, key string, value string) {
	kac, err := b.client.KeepAlive(ctx, leaseID)
	if err != nil {
		kac = nil
	}
	for {
		if kac == nil {
			if kac = b.reRegister(ctx, key, value); kac == nil {
				return
			}
		}
		select {
		case _, ok := <-kac:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				logger.Warn(ctx, "etcd lease keepalive closed, key:%s", key)
				kac = nil
			}
		case <-ctx.Done():
			return
		}
	}
}

// reRegister 等待2^n秒重试 全部失败后放弃
func (b *Backend) reRegister(ctx context.Context, key string, value string) <-chan *clientv3.LeaseKeepAliveResponse {
	for retryCnt := 0; retryCnt < b.opts.maxRetry; retryCnt++ {
		if ctx.Err() != nil {
			return nil
		}
		cCtx, cancel := context.WithTimeout(ctx, _registerTimeout)
		id, err := b.registerKV(cCtx, key, value)
		cancel()
		if err == nil {
			kac, err := b.client.KeepAlive(ctx, id)
			if err == nil {
				return kac
			}
		}
		logger.Warn(ctx, "etcd re-register failed, key:%s, retry:%d, err:%v", key, retryCnt, err)
		select {
		case <-time.After(time.Duration(1<<retryCnt) * time.Second):
		case <-ctx.Done():
			return nil
		}
	}
	logger.Error(ctx, "etcd re-register give up, key:%s", key)
	return nil
}

// Unregister 停止续期并删除节点
func (b *Backend) Unregister(ctx context.Context, u *url.URL) error {
	key := registry.NodePath(b.opts.root, u)
	b.mu.Lock()
	if cancel, ok := b.nodes[key]; ok {
		cancel()
		delete(b.nodes, key)
	}
	b.mu.Unlock()
	if _, err := b.kv.Delete(ctx, key); err != nil {
		return backendError(err, "unregister %s", key)
	}
	return nil
}

func (b *Backend) SubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	prefix := registry.ServicePath(b.opts.root, key)
	b.serviceHub.Add(prefix, key.Copy(), l, func(ctx context.Context) {
		b.watch(ctx, prefix+"/", true, func() {
			urls, err := b.loadServices(ctx, prefix)
			if err != nil {
				logger.Warn(ctx, "etcd load services failed, prefix:%s, err:%v", prefix, err)
				return
			}
			for _, s := range b.serviceHub.Subscriptions(prefix) {
				s.Listener.NotifyService(s.Key, urls)
			}
		})
	})
	return nil
}

func (b *Backend) UnsubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	b.serviceHub.Remove(registry.ServicePath(b.opts.root, key), l)
	return nil
}

func (b *Backend) SubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	path := registry.CommandPath(b.opts.root, key)
	b.commandHub.Add(path, key.Copy(), l, func(ctx context.Context) {
		b.watch(ctx, path, false, func() {
			command, err := b.command(ctx, path)
			if err != nil {
				logger.Warn(ctx, "etcd load command failed, key:%s, err:%v", path, err)
				return
			}
			for _, s := range b.commandHub.Subscriptions(path) {
				s.Listener.NotifyCommand(s.Key, command)
			}
		})
	})
	return nil
}

func (b *Backend) UnsubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	b.commandHub.Remove(registry.CommandPath(b.opts.root, key), l)
	return nil
}

// watch 监听key变化 watch中断后重新建立
func (b *Backend) watch(ctx context.Context, key string, prefix bool, onChange func()) {
	var opts []clientv3.OpOption
	if prefix {
		opts = append(opts, clientv3.WithPrefix())
	}
	for ctx.Err() == nil {
		wch := b.client.Watch(ctx, key, opts...)
		for resp := range wch {
			if err := resp.Err(); err != nil {
				logger.Warn(ctx, "etcd watch error, key:%s, err:%v", key, err)
				break
			}
			if len(resp.Events) > 0 {
				onChange()
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		// 重新watch期间可能丢失变化
		onChange()
	}
}

func (b *Backend) DiscoverService(ctx context.Context, key *url.URL) ([]*url.URL, error) {
	urls, err := b.loadServices(ctx, registry.ServicePath(b.opts.root, key))
	if err != nil {
		return nil, err
	}
	return urls, nil
}

func (b *Backend) loadServices(ctx context.Context, prefix string) ([]*url.URL, error) {
	resp, err := b.kv.Get(ctx, prefix+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, backendError(err, "get %s", prefix)
	}
	values := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values = append(values, string(kv.Value))
	}
	return registry.ParseNodes(values), nil
}

func (b *Backend) DiscoverCommand(ctx context.Context, key *url.URL) (string, error) {
	return b.command(ctx, registry.CommandPath(b.opts.root, key))
}

func (b *Backend) command(ctx context.Context, path string) (string, error) {
	resp, err := b.kv.Get(ctx, path)
	if err != nil {
		return "", backendError(err, "get %s", path)
	}
	if len(resp.Kvs) == 0 {
		return "", nil
	}
	return string(resp.Kvs[0].Value), nil
}

// SetCommand 写入分组指令 空字符串删除
func (b *Backend) SetCommand(ctx context.Context, group string, command string) error {
	path := registry.CommandPath(b.opts.root, url.New("", "", 0, "", map[string]string{url.ParamGroup: group}))
	var err error
	if command == "" {
		_, err = b.kv.Delete(ctx, path)
	} else {
		_, err = b.kv.Put(ctx, path, command)
	}
	if err != nil {
		return backendError(err, "set command %s", path)
	}
	return nil
}

// Close 停止续期和watch 关闭客户端
func (b *Backend) Close() error {
	b.cancel()
	b.serviceHub.Close()
	b.commandHub.Close()
	return b.client.Close()
}
