// Package redis 基于redis的注册中心后端
// 节点存放在有序集合中 score为过期时间 变化通过pub/sub通知
package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"
	qRedis "github.com/wangshanqi84-gif/quiver/redis"

	redisgo "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	_defaultTTL = 30 * time.Second
	_lockSuffix = ":lock"
)

type Option func(o *options)

type options struct {
	ctx  context.Context
	root string
	ttl  time.Duration
}

func Context(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func Root(root string) Option {
	return func(o *options) { o.root = root }
}

// TTL 节点有效期 心跳间隔为1/3
func TTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

type Backend struct {
	opts   *options
	client *qRedis.Client

	serviceHub *registry.Hub[registry.ServiceListener]
	commandHub *registry.Hub[registry.CommandListener]

	mu    sync.Mutex
	nodes map[string]context.CancelFunc // member => 停止心跳

	ctx    context.Context
	cancel context.CancelFunc
}

var _ registry.Backend = (*Backend)(nil)

func New(client *qRedis.Client, opts ...Option) *Backend {
	op := &options{
		ctx:  context.Background(),
		root: registry.DefaultRoot,
		ttl:  _defaultTTL,
	}
	for _, o := range opts {
		if o != nil {
			o(op)
		}
	}
	b := &Backend{
		opts:   op,
		client: client,
		nodes:  make(map[string]context.CancelFunc),
	}
	b.ctx, b.cancel = context.WithCancel(op.ctx)
	b.serviceHub = registry.NewHub[registry.ServiceListener](b.ctx)
	b.commandHub = registry.NewHub[registry.CommandListener](b.ctx)
	return b
}

func backendError(err error, format string, args ...interface{}) error {
	return gErrors.Framework(gErrors.ErrBackend, "redis", errors.Wrapf(err, format, args...))
}

// expireScore 过期时间(毫秒)
func expireScore(now time.Time, ttl time.Duration) float64 {
	return float64(now.Add(ttl).UnixNano() / int64(time.Millisecond))
}

func nowScore(now time.Time) string {
	return strconv.FormatInt(now.UnixNano()/int64(time.Millisecond), 10)
}

func (b *Backend) Register(ctx context.Context, u *url.URL) error {
	key := registry.ServicePath(b.opts.root, u)
	member := u.String()
	if err := b.heartbeat(ctx, key, member); err != nil {
		return err
	}
	b.publish(ctx, key)

	hctx, cancel := context.WithCancel(b.ctx)
	b.mu.Lock()
	if old, ok := b.nodes[member]; ok {
		old()
	}
	b.nodes[member] = cancel
	b.mu.Unlock()
	go b.keepAlive(hctx, key, member)
	return nil
}

func (b *Backend) heartbeat(ctx context.Context, key string, member string) error {
	now := time.Now()
	z := &redisgo.Z{Score: expireScore(now, b.opts.ttl), Member: member}
	if err := b.client.ZAdd(ctx, key, z).Err(); err != nil {
		return backendError(err, "zadd %s", key)
	}
	// 清理过期节点
	if err := b.client.ZRemRangeByScore(ctx, key, "-inf", "("+nowScore(now)).Err(); err != nil {
		logger.Warn(ctx, "redis remove expired nodes failed, key:%s, err:%v", key, err)
	}
	return nil
}

// keepAlive 定时刷新过期时间
func (b *Backend) keepAlive(ctx context.Context, key string, member string) {
	ticker := time.NewTicker(b.opts.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.heartbeat(ctx, key, member); err != nil && ctx.Err() == nil {
				logger.Warn(ctx, "redis heartbeat failed, key:%s, err:%v", key, err)
			}
		}
	}
}

func (b *Backend) Unregister(ctx context.Context, u *url.URL) error {
	key := registry.ServicePath(b.opts.root, u)
	member := u.String()
	b.mu.Lock()
	if cancel, ok := b.nodes[member]; ok {
		cancel()
		delete(b.nodes, member)
	}
	b.mu.Unlock()
	if err := b.client.ZRem(ctx, key, member).Err(); err != nil {
		return backendError(err, "zrem %s", key)
	}
	b.publish(ctx, key)
	return nil
}

func (b *Backend) publish(ctx context.Context, channel string) {
	if err := b.client.Publish(ctx, channel, "changed").Err(); err != nil {
		logger.Warn(ctx, "redis publish failed, channel:%s, err:%v", channel, err)
	}
}

func (b *Backend) SubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	nodeKey := registry.ServicePath(b.opts.root, key)
	b.serviceHub.Add(nodeKey, key.Copy(), l, func(ctx context.Context) {
		var last []string
		// 过期不会产生消息 按ttl轮询兜底
		b.listen(ctx, nodeKey, b.opts.ttl, func() {
			urls, err := b.loadServices(ctx, nodeKey)
			if err != nil {
				logger.Warn(ctx, "redis load services failed, key:%s, err:%v", nodeKey, err)
				return
			}
			ids := url.Identities(urls)
			if last != nil && equalStrings(last, ids) {
				return
			}
			last = ids
			for _, s := range b.serviceHub.Subscriptions(nodeKey) {
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
		b.listen(ctx, path, 0, func() {
			command, err := b.loadCommand(ctx, path)
			if err != nil {
				logger.Warn(ctx, "redis load command failed, key:%s, err:%v", path, err)
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

// listen 订阅频道 收到消息或轮询到期时回调
func (b *Backend) listen(ctx context.Context, channel string, poll time.Duration, onChange func()) {
	ps := b.client.Subscribe(ctx, channel)
	defer func() {
		_ = ps.Close()
	}()
	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			onChange()
		case <-tick:
			onChange()
		}
	}
}

func (b *Backend) DiscoverService(ctx context.Context, key *url.URL) ([]*url.URL, error) {
	return b.loadServices(ctx, registry.ServicePath(b.opts.root, key))
}

func (b *Backend) loadServices(ctx context.Context, key string) ([]*url.URL, error) {
	values, err := b.client.ZRangeByScore(ctx, key, &redisgo.ZRangeBy{
		Min: nowScore(time.Now()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, backendError(err, "zrangebyscore %s", key)
	}
	return registry.ParseNodes(values), nil
}

func (b *Backend) DiscoverCommand(ctx context.Context, key *url.URL) (string, error) {
	return b.loadCommand(ctx, registry.CommandPath(b.opts.root, key))
}

func (b *Backend) loadCommand(ctx context.Context, path string) (string, error) {
	command, err := b.client.Get(ctx, path).Result()
	if err == redisgo.Nil {
		return "", nil
	}
	if err != nil {
		return "", backendError(err, "get %s", path)
	}
	return command, nil
}

// SetCommand 写入分组指令 空字符串删除 写入过程加分布式锁
func (b *Backend) SetCommand(ctx context.Context, group string, command string) error {
	path := registry.CommandPath(b.opts.root, url.New("", "", 0, "", map[string]string{url.ParamGroup: group}))
	mutex := b.client.NewMutex(path+_lockSuffix, 0)
	ok, err := mutex.TryLock(ctx)
	if err != nil {
		return backendError(err, "lock %s", path)
	}
	if !ok {
		return gErrors.Frameworkf(gErrors.ErrIllegalState, "command %s is being modified", path)
	}
	defer func() {
		if _, err := mutex.UnLock(ctx); err != nil {
			logger.Warn(ctx, "redis unlock command failed, key:%s, err:%v", path, err)
		}
	}()
	if command == "" {
		err = b.client.Del(ctx, path).Err()
	} else {
		err = b.client.Set(ctx, path, command, 0).Err()
	}
	if err != nil {
		return backendError(err, "set command %s", path)
	}
	b.publish(ctx, path)
	return nil
}

func (b *Backend) Close() error {
	b.cancel()
	b.serviceHub.Close()
	b.commandHub.Close()
	return b.client.Close()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
