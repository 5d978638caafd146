package app

import (
	"context"
	"strings"

	"github.com/wangshanqi84-gif/quiver/app/config"
	"github.com/wangshanqi84-gif/quiver/consul"
	"github.com/wangshanqi84-gif/quiver/cores/env"
	"github.com/wangshanqi84-gif/quiver/cores/logger"
	"github.com/wangshanqi84-gif/quiver/cores/metric/sentry"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/registry/command"
	cConsul "github.com/wangshanqi84-gif/quiver/cores/registry/consul"
	cEtcd "github.com/wangshanqi84-gif/quiver/cores/registry/etcd"
	"github.com/wangshanqi84-gif/quiver/cores/registry/memory"
	cNacos "github.com/wangshanqi84-gif/quiver/cores/registry/nacos"
	cRedis "github.com/wangshanqi84-gif/quiver/cores/registry/redis"
	"github.com/wangshanqi84-gif/quiver/cores/tracing"
	"github.com/wangshanqi84-gif/quiver/cores/tracing/jaeger"
	"github.com/wangshanqi84-gif/quiver/etcd"
	gLog "github.com/wangshanqi84-gif/quiver/logger"
	"github.com/wangshanqi84-gif/quiver/nacos"
	"github.com/wangshanqi84-gif/quiver/redis"

	"github.com/pkg/errors"
)

func initLogger(cfg *config.LogConfig) {
	if cfg == nil {
		gLog.InitLogger("")
		return
	}
	var opts []logger.Option
	// 设置日志路径
	if env.GetEnv(env.QvrLogPath) != "" {
		opts = append(opts, logger.SetPath(env.GetEnv(env.QvrLogPath)))
	}
	if cfg.SaveDays > 0 {
		opts = append(opts, logger.SetSaveDays(cfg.SaveDays))
	}
	if strings.ToLower(cfg.Rotation) == "hour" {
		opts = append(opts, logger.SetRotation(logger.RotationHour))
	}
	if cfg.Format == logger.JsonFormat || cfg.Format == logger.ConsoleFormat {
		opts = append(opts, logger.SetFormat(cfg.Format))
	}
	gLog.InitLogger(cfg.Level, opts...)
}

// initTracer 初始化失败时退化为空实现
func initTracer(ctx context.Context, name string) tracing.Tracer {
	t, err := jaeger.NewTracer(name)
	if err != nil {
		gLog.Warn(ctx, "init tracer failed, use noop tracer, err:%v", err)
		return tracing.Noop()
	}
	return t
}

func initSentry(name string) {
	sentry.InitMetric(sentry.SetServerName(name)).Start()
}

// NewBackend 按配置创建注册中心后端 地址为空时读取对应环境变量
func NewBackend(ctx context.Context, cfg *config.RegistryConfig) (registry.Backend, error) {
	if cfg == nil {
		return nil, errors.New("registry config undefined")
	}
	root := cfg.RootPath()
	switch strings.ToLower(cfg.Backend) {
	case "memory", "":
		return memory.New(), nil
	case "etcd":
		c, err := etcd.NewEtcdClient(
			etcd.Endpoints(cfg.Address),
			etcd.Username(cfg.Username),
			etcd.Password(cfg.Password),
			etcd.FromEnv(),
		)
		if err != nil {
			return nil, err
		}
		opts := []cEtcd.Option{cEtcd.Context(ctx), cEtcd.Root(root)}
		if ttl := cfg.TTLDuration(); ttl > 0 {
			opts = append(opts, cEtcd.TTL(ttl))
		}
		return cEtcd.New(c, opts...), nil
	case "consul":
		c, err := consul.NewConsulClient(strings.Join(cfg.Address, ","))
		if err != nil {
			return nil, err
		}
		return cConsul.New(c, cConsul.Context(ctx), cConsul.Root(root)), nil
	case "nacos":
		opts := []nacos.Option{
			nacos.WithNamespace(cfg.Namespace),
			nacos.WithLogger(gLog.GetGen()),
		}
		if len(cfg.Address) > 0 {
			opts = append(opts, nacos.WithServerPath(cfg.Address[0]))
		}
		if cfg.Username != "" {
			opts = append(opts, nacos.WithUserName(cfg.Username), nacos.WithPassword(cfg.Password))
		}
		opts = append(opts, nacos.FromEnv())
		naming, err := nacos.NewNamingClient(opts...)
		if err != nil {
			return nil, err
		}
		conf, err := nacos.NewConfigClient(opts...)
		if err != nil {
			return nil, err
		}
		return cNacos.New(naming, conf, cNacos.Context(ctx)), nil
	case "redis":
		c, err := redis.NewClient(
			redis.Addrs(cfg.Address),
			redis.Model(cfg.Model),
			redis.DB(cfg.DB),
			redis.Username(cfg.Username),
			redis.Password(cfg.Password),
		)
		if err != nil {
			return nil, err
		}
		opts := []cRedis.Option{cRedis.Context(ctx), cRedis.Root(root)}
		if ttl := cfg.TTLDuration(); ttl > 0 {
			opts = append(opts, cRedis.TTL(ttl))
		}
		return cRedis.New(c, opts...), nil
	}
	return nil, errors.Errorf("registry backend %s not support", cfg.Backend)
}

// NewRegistry 创建支持指令的注册中心
func NewRegistry(ctx context.Context, cfg *config.RegistryConfig, opts ...command.Option) (*command.Registry, error) {
	b, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return command.NewRegistry(cfg.URL(), b, opts...), nil
}
