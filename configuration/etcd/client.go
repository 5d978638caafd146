package etcd

import (
	"context"
	"strings"

	"github.com/wangshanqi84-gif/quiver/configuration"
	"github.com/wangshanqi84-gif/quiver/cores/env"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type Option func(*ConfigClient)

// Prefix 配置根路径 默认/quiver/config
func Prefix(prefix string) Option {
	return func(cc *ConfigClient) {
		cc.prefix = strings.TrimRight(prefix, "/")
	}
}

// Watch 监听配置变更
func Watch(fn configuration.OnChange) Option {
	return func(cc *ConfigClient) {
		cc.onChange = fn
	}
}

// ConfigClient etcd配置 key为{prefix}/{runEnv}/{name}
type ConfigClient struct {
	ctx      context.Context
	cli      *clientv3.Client
	format   string
	prefix   string
	onChange configuration.OnChange
}

func NewConfigClient(ctx context.Context, cli *clientv3.Client, format string, opts ...Option) *ConfigClient {
	cc := &ConfigClient{
		ctx:    ctx,
		cli:    cli,
		format: configuration.NormalizeFormat(format),
		prefix: "/quiver/config",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cc)
		}
	}
	return cc
}

func (cc *ConfigClient) key(name string) string {
	return cc.prefix + "/" + env.GetRunEnv() + "/" + strings.TrimLeft(name, "/")
}

func (cc *ConfigClient) GetConfig(name string, v interface{}) error {
	key := cc.key(name)
	resp, err := cc.cli.Get(cc.ctx, key)
	if err != nil {
		return errors.Wrapf(err, "etcd get config %s", key)
	}
	if len(resp.Kvs) == 0 {
		return errors.Errorf("config %s does not exist", key)
	}
	if err = configuration.Unmarshal(cc.format, resp.Kvs[0].Value, v); err != nil {
		return err
	}
	if cc.onChange != nil {
		go cc.watch(name, key, resp.Header.Revision+1)
	}
	return nil
}

func (cc *ConfigClient) watch(name string, key string, rev int64) {
	wc := cc.cli.Watch(cc.ctx, key, clientv3.WithRev(rev))
	for res := range wc {
		if err := res.Err(); err != nil {
			logger.Warn(cc.ctx, "etcd config watch error, key:%s, err:%v", key, err)
			continue
		}
		for _, ev := range res.Events {
			if ev.Type == clientv3.EventTypePut && string(ev.Kv.Key) == key {
				cc.onChange(name, ev.Kv.Value)
			}
		}
	}
}

func (cc *ConfigClient) PublishConfig(name string, v interface{}) error {
	bs, err := configuration.Marshal(cc.format, v)
	if err != nil {
		return err
	}
	key := cc.key(name)
	if _, err = cc.cli.Put(cc.ctx, key, string(bs)); err != nil {
		return errors.Wrapf(err, "etcd put config %s", key)
	}
	return nil
}
