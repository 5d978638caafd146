package command

import (
	"context"
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/application"
	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/registry/failback"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"
)

type Option func(o *options)

type options struct {
	apps     *application.Table
	failback []failback.Option
}

// Applications 应用信息表 默认每个注册中心独立一份
func Applications(t *application.Table) Option {
	return func(o *options) { o.apps = t }
}

// Failback 失败重试参数
func Failback(opts ...failback.Option) Option {
	return func(o *options) { o.failback = append(o.failback, opts...) }
}

// Registry 支持指令的注册中心
// 订阅/取消订阅失败后台重试 发现失败直接返回
type Registry struct {
	*failback.Registry

	backend  registry.Backend
	apps     *application.Table
	managers sync.Map // identity => *Manager
}

var _ registry.Registry = (*Registry)(nil)

func NewRegistry(registryURL *url.URL, backend registry.Backend, opts ...Option) *Registry {
	op := &options{}
	for _, o := range opts {
		if o != nil {
			o(op)
		}
	}
	if op.apps == nil {
		op.apps = application.NewTable()
	}
	r := &Registry{
		backend: backend,
		apps:    op.apps,
	}
	r.Registry = failback.New(registryURL, &doer{r: r}, op.failback...)
	return r
}

func (r *Registry) Backend() registry.Backend {
	return r.backend
}

// Manager 查询订阅地址对应的manager
func (r *Registry) Manager(key *url.URL) (*Manager, bool) {
	v, ok := r.managers.Load(key.Identity())
	if !ok {
		return nil, false
	}
	return v.(*Manager), true
}

// manager 获取或创建 并发创建时只保留一个
func (r *Registry) manager(key *url.URL) *Manager {
	id := key.Identity()
	if v, ok := r.managers.Load(id); ok {
		return v.(*Manager)
	}
	v, _ := r.managers.LoadOrStore(id, NewManager(key, r.backend))
	return v.(*Manager)
}

// CommandPreview 预览指令效果 不读取后端指令 不修改任何状态
func (r *Registry) CommandPreview(ctx context.Context, key *url.URL, cmd *Command, previewIP string) ([]*url.URL, error) {
	c := key.Copy()
	if cmd == nil {
		urls, err := r.backend.DiscoverService(ctx, c)
		if err != nil {
			return nil, err
		}
		if urls == nil {
			urls = []*url.URL{}
		}
		return urls, nil
	}
	m, ok := r.Manager(c)
	if !ok {
		m = NewManager(c, r.backend)
	}
	return m.DiscoverServiceWithCommand(ctx, c, map[string]int{}, cmd, previewIP)
}

// Close 停止重试并关闭后端
func (r *Registry) Close() error {
	_ = r.Registry.Close()
	return r.backend.Close()
}

func (r *Registry) doRegister(ctx context.Context, u *url.URL) error {
	c := u.Copy()
	r.apps.AddService(c)
	logger.Info(ctx, "command registry register, url:%s", c.SimpleString())
	return r.backend.Register(ctx, c)
}

func (r *Registry) doUnregister(ctx context.Context, u *url.URL) error {
	c := u.Copy()
	logger.Info(ctx, "command registry unregister, url:%s", c.SimpleString())
	return r.backend.Unregister(ctx, c)
}

func (r *Registry) doSubscribe(ctx context.Context, key *url.URL, l registry.NotifyListener) error {
	c := key.Copy()
	app := r.apps.Get(c)
	logger.Info(ctx, "command registry subscribe, url:%s, application:%s, module:%s", c.SimpleString(), app.Application, app.Module)

	m := r.manager(c)
	m.AddNotifyListener(l)
	if err := r.backend.SubscribeService(ctx, c, m); err != nil {
		return err
	}
	if err := r.backend.SubscribeCommand(ctx, c, m); err != nil {
		return err
	}
	seq := m.reserve()
	urls, err := r.doDiscover(ctx, c)
	if err != nil {
		return err
	}
	if len(urls) > 0 {
		m.notifyNow(seq, l, urls)
	}
	return nil
}

func (r *Registry) doUnsubscribe(ctx context.Context, key *url.URL, l registry.NotifyListener) error {
	c := key.Copy()
	m, ok := r.Manager(c)
	if !ok {
		return gErrors.Frameworkf(gErrors.ErrIllegalState, "unsubscribe before subscribe, url:%s", c.SimpleString())
	}
	logger.Info(ctx, "command registry unsubscribe, url:%s", c.SimpleString())
	// 其他监听者仍在使用 保留后端订阅
	if m.RemoveNotifyListener(l) > 0 {
		return nil
	}
	if err := r.backend.UnsubscribeService(ctx, c, m); err != nil {
		return err
	}
	if err := r.backend.UnsubscribeCommand(ctx, c, m); err != nil {
		return err
	}
	m.releaseGroups(ctx)
	return nil
}

func (r *Registry) doDiscover(ctx context.Context, key *url.URL) ([]*url.URL, error) {
	c := key.Copy()
	raw, err := r.backend.DiscoverCommand(ctx, c)
	if err != nil {
		return nil, err
	}
	var urls []*url.URL
	if raw != "" {
		cmd, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		cmd.Sort()
		m := r.manager(c)
		urls, err = m.DiscoverServiceWithCommand(ctx, c, map[string]int{}, cmd, "")
		if err != nil {
			return nil, err
		}
		m.SetCommandCache(raw)
	} else {
		urls, err = r.backend.DiscoverService(ctx, c)
		if err != nil {
			return nil, err
		}
	}
	if urls == nil {
		urls = []*url.URL{}
	}
	logger.Info(ctx, "command registry discover, url:%s, size:%d", c.SimpleString(), len(urls))
	return urls, nil
}

// doer 注册中心的具体操作 供失败重试基础实现调用
type doer struct {
	r *Registry
}

func (d *doer) DoRegister(ctx context.Context, u *url.URL) error {
	return d.r.doRegister(ctx, u)
}

func (d *doer) DoUnregister(ctx context.Context, u *url.URL) error {
	return d.r.doUnregister(ctx, u)
}

func (d *doer) DoSubscribe(ctx context.Context, key *url.URL, l registry.NotifyListener) error {
	return d.r.doSubscribe(ctx, key, l)
}

func (d *doer) DoUnsubscribe(ctx context.Context, key *url.URL, l registry.NotifyListener) error {
	return d.r.doUnsubscribe(ctx, key, l)
}

func (d *doer) DoDiscover(ctx context.Context, key *url.URL) ([]*url.URL, error) {
	return d.r.doDiscover(ctx, key)
}
