// Package nacos 基于nacos的注册中心后端
// 服务注册使用naming client 指令存放在配置中心
package nacos

import (
	"context"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/nacos-group/nacos-sdk-go/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/model"
	"github.com/nacos-group/nacos-sdk-go/vo"
	"github.com/pkg/errors"
)

const (
	_metaURL       = "url"
	_commandDataID = "command"
)

type Option func(o *options)

type options struct {
	ctx     context.Context
	cluster string
}

func Context(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Cluster 实例所属集群
func Cluster(cluster string) Option {
	return func(o *options) { o.cluster = cluster }
}

type Backend struct {
	opts   *options
	naming naming_client.INamingClient
	config config_client.IConfigClient

	serviceHub *registry.Hub[registry.ServiceListener]
	commandHub *registry.Hub[registry.CommandListener]
}

var _ registry.Backend = (*Backend)(nil)

func New(naming naming_client.INamingClient, config config_client.IConfigClient, opts ...Option) *Backend {
	op := &options{
		ctx: context.Background(),
	}
	for _, o := range opts {
		if o != nil {
			o(op)
		}
	}
	return &Backend{
		opts:       op,
		naming:     naming,
		config:     config,
		serviceHub: registry.NewHub[registry.ServiceListener](op.ctx),
		commandHub: registry.NewHub[registry.CommandListener](op.ctx),
	}
}

func backendError(err error, format string, args ...interface{}) error {
	return gErrors.Framework(gErrors.ErrBackend, "nacos", errors.Wrapf(err, format, args...))
}

func (b *Backend) clusters() []string {
	if b.opts.cluster == "" {
		return nil
	}
	return []string{b.opts.cluster}
}

func registerParam(u *url.URL, cluster string) vo.RegisterInstanceParam {
	return vo.RegisterInstanceParam{
		Ip:          u.Host,
		Port:        uint64(u.Port),
		ClusterName: cluster,
		ServiceName: u.Path,
		GroupName:   u.Group(),
		Weight:      1.0,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata: map[string]string{
			_metaURL: u.String(),
		},
	}
}

func (b *Backend) Register(_ context.Context, u *url.URL) error {
	ok, err := b.naming.RegisterInstance(registerParam(u, b.opts.cluster))
	if err != nil {
		return backendError(err, "register %s", u.SimpleString())
	}
	if !ok {
		return backendError(errors.New("server refused"), "register %s", u.SimpleString())
	}
	return nil
}

func (b *Backend) Unregister(_ context.Context, u *url.URL) error {
	ok, err := b.naming.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          u.Host,
		Port:        uint64(u.Port),
		Cluster:     b.opts.cluster,
		ServiceName: u.Path,
		GroupName:   u.Group(),
		Ephemeral:   true,
	})
	if err != nil {
		return backendError(err, "deregister %s", u.SimpleString())
	}
	if !ok {
		return backendError(errors.New("server refused"), "deregister %s", u.SimpleString())
	}
	return nil
}

func (b *Backend) SubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	nodeKey := registry.ServicePath(registry.DefaultRoot, key)
	service, group := key.Path, key.Group()
	b.serviceHub.Add(nodeKey, key.Copy(), l, func(ctx context.Context) {
		param := &vo.SubscribeParam{
			ServiceName: service,
			GroupName:   group,
			Clusters:    b.clusters(),
			// 回调只作为变化信号 重新查询健康实例
			SubscribeCallback: func(_ []model.SubscribeService, err error) {
				if err != nil {
					logger.Warn(ctx, "nacos subscribe callback error, service:%s, err:%v", service, err)
					return
				}
				urls, err := b.selectInstances(service, group)
				if err != nil {
					logger.Warn(ctx, "nacos select instances failed, service:%s, err:%v", service, err)
					return
				}
				for _, s := range b.serviceHub.Subscriptions(nodeKey) {
					s.Listener.NotifyService(s.Key, urls)
				}
			},
		}
		for {
			err := b.naming.Subscribe(param)
			if err == nil {
				break
			}
			logger.Warn(ctx, "nacos subscribe failed, service:%s, err:%v", service, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		<-ctx.Done()
		if err := b.naming.Unsubscribe(param); err != nil {
			logger.Warn(ctx, "nacos unsubscribe failed, service:%s, err:%v", service, err)
		}
	})
	return nil
}

func (b *Backend) UnsubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	b.serviceHub.Remove(registry.ServicePath(registry.DefaultRoot, key), l)
	return nil
}

func (b *Backend) SubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	group := key.Group()
	b.commandHub.Add(group, key.Copy(), l, func(ctx context.Context) {
		param := vo.ConfigParam{
			DataId: _commandDataID,
			Group:  group,
			OnChange: func(_, _, _, data string) {
				for _, s := range b.commandHub.Subscriptions(group) {
					s.Listener.NotifyCommand(s.Key, data)
				}
			},
		}
		for {
			err := b.config.ListenConfig(param)
			if err == nil {
				break
			}
			logger.Warn(ctx, "nacos listen command failed, group:%s, err:%v", group, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		<-ctx.Done()
		if err := b.config.CancelListenConfig(param); err != nil {
			logger.Warn(ctx, "nacos cancel listen command failed, group:%s, err:%v", group, err)
		}
	})
	return nil
}

func (b *Backend) UnsubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	b.commandHub.Remove(key.Group(), l)
	return nil
}

func (b *Backend) DiscoverService(_ context.Context, key *url.URL) ([]*url.URL, error) {
	return b.selectInstances(key.Path, key.Group())
}

func (b *Backend) selectInstances(service string, group string) ([]*url.URL, error) {
	instances, err := b.naming.SelectInstances(vo.SelectInstancesParam{
		Clusters:    b.clusters(),
		ServiceName: service,
		GroupName:   group,
		HealthyOnly: true,
	})
	if err != nil {
		return nil, backendError(err, "select instances %s", service)
	}
	return instanceURLs(instances), nil
}

// instanceURLs 过滤不可用实例 取meta中的url
func instanceURLs(instances []model.Instance) []*url.URL {
	values := make([]string, 0, len(instances))
	for _, ins := range instances {
		if !ins.Healthy || !ins.Enable || ins.Weight <= 0 {
			continue
		}
		if v, ok := ins.Metadata[_metaURL]; ok {
			values = append(values, v)
		}
	}
	return registry.ParseNodes(values)
}

func (b *Backend) DiscoverCommand(_ context.Context, key *url.URL) (string, error) {
	content, err := b.config.GetConfig(vo.ConfigParam{
		DataId: _commandDataID,
		Group:  key.Group(),
	})
	if err != nil {
		return "", backendError(err, "get command %s", key.Group())
	}
	return content, nil
}

// SetCommand 发布分组指令 空字符串删除
func (b *Backend) SetCommand(_ context.Context, group string, command string) error {
	param := vo.ConfigParam{
		DataId:  _commandDataID,
		Group:   group,
		Content: command,
	}
	var (
		ok  bool
		err error
	)
	if command == "" {
		ok, err = b.config.DeleteConfig(param)
	} else {
		ok, err = b.config.PublishConfig(param)
	}
	if err != nil {
		return backendError(err, "set command %s", group)
	}
	if !ok {
		return backendError(errors.New("server refused"), "set command %s", group)
	}
	return nil
}

func (b *Backend) Close() error {
	b.serviceHub.Close()
	b.commandHub.Close()
	return nil
}
