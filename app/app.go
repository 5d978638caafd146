package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wangshanqi84-gif/quiver/app/config"
	"github.com/wangshanqi84-gif/quiver/configuration"
	"github.com/wangshanqi84-gif/quiver/cores/application"
	"github.com/wangshanqi84-gif/quiver/cores/metric/pprof"
	"github.com/wangshanqi84-gif/quiver/cores/registry/command"
	"github.com/wangshanqi84-gif/quiver/cores/rpc/serialize"
	"github.com/wangshanqi84-gif/quiver/cores/tracing"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// App 进程级的注册中心接入 负责导出节点的注册与注销
type App struct {
	baseCtx context.Context
	cancel  func()

	id       string
	name     string
	cfg      *config.ServiceConfig
	config   configuration.IConfig
	tracer   tracing.Tracer
	registry *command.Registry

	mu      sync.Mutex
	exports []*url.URL
}

// New 使用已加载的配置创建
func New(ctx context.Context, name string, cfg *config.ServiceConfig) (*App, error) {
	if cfg == nil {
		cfg = &config.ServiceConfig{}
	}
	if cfg.Registry == nil {
		cfg.Registry = &config.RegistryConfig{Backend: "memory"}
	}
	ctx, cancel := context.WithCancel(ctx)
	initLogger(cfg.Log)
	reg, err := NewRegistry(ctx, cfg.Registry, command.Applications(application.NewTable()))
	if err != nil {
		cancel()
		return nil, err
	}
	u, _ := uuid.NewUUID()
	a := &App{
		baseCtx:  ctx,
		cancel:   cancel,
		id:       u.String(),
		name:     name,
		cfg:      cfg,
		tracer:   initTracer(ctx, name),
		registry: reg,
	}
	initSentry(name)
	logger.Gen(ctx, "app %s init over, id:%s, registry:%s", name, a.id, cfg.Registry.URL().SimpleString())
	return a, nil
}

var (
	once sync.Once
	r    *App
)

// Router 进程内唯一实例 InitRouter之前为nil
func Router() *App {
	return r
}

// InitRouter 从配置中心加载配置并创建唯一实例
func InitRouter(name string, configName string, opts ...config.Option) error {
	var err error
	once.Do(func() {
		cfg := &config.ServiceConfig{}
		var cli configuration.IConfig
		cli, err = config.Initialize(context.Background(), configName, cfg, opts...)
		if err != nil {
			return
		}
		r, err = New(context.Background(), name, cfg)
		if err != nil {
			return
		}
		r.config = cli
	})
	return err
}

func (a *App) Ctx() context.Context {
	return a.baseCtx
}

func (a *App) ID() string {
	return a.id
}

func (a *App) Config() *config.ServiceConfig {
	return a.cfg
}

func (a *App) ConfigClient() configuration.IConfig {
	return a.config
}

func (a *App) Tracer() tracing.Tracer {
	return a.tracer
}

func (a *App) Registry() *command.Registry {
	return a.registry
}

// Export 导出本机服务节点 未指定分组及序列化方式时使用配置值
func (a *App) Export(protocol string, port int, path string, params map[string]string) (*url.URL, error) {
	host, err := LocalIP()
	if err != nil {
		return nil, err
	}
	params = copyParams(params)
	if _, has := params[url.ParamGroup]; !has && a.cfg.Registry.Group != "" {
		params[url.ParamGroup] = a.cfg.Registry.Group
	}
	if _, has := params[url.ParamSerialization]; !has && a.cfg.Codec != nil && a.cfg.Codec.Serialization != "" {
		params[url.ParamSerialization] = a.cfg.Codec.Serialization
	}
	if _, err = serialize.Get(url.New("", "", 0, "", params).Serialization()); err != nil {
		return nil, err
	}
	u := url.New(protocol, host, port, path, params)
	a.mu.Lock()
	a.exports = append(a.exports, u)
	a.mu.Unlock()
	return u, nil
}

// Exports 已导出的节点
func (a *App) Exports() []*url.URL {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*url.URL, len(a.exports))
	copy(out, a.exports)
	return out
}

// Start 启动调试端口并注册所有导出节点 注册失败由注册中心后台重试
func (a *App) Start() error {
	if mc := a.cfg.Metric; mc != nil && mc.Port > 0 {
		addr, err := pprof.New(pprof.SetPort(mc.Port), pprof.SetPprof(mc.Pprof)).Start(a.baseCtx)
		if err != nil {
			return err
		}
		logger.Gen(a.baseCtx, "metric server listen on %s", addr)
	}
	for _, u := range a.Exports() {
		if err := a.registry.Register(a.baseCtx, u); err != nil {
			return err
		}
		logger.Gen(a.baseCtx, "service register, url:%s", u.SimpleString())
	}
	return nil
}

// Run 注册后阻塞直到收到退出信号或ctx结束
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(a.baseCtx)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	defer signal.Stop(c)
	eg.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-c:
			logger.Gen(a.baseCtx, "recv sig, app %s shutdown beginning...", a.name)
			return a.ShutDown()
		}
	})
	return eg.Wait()
}

// ShutDown 注销导出节点并关闭注册中心
func (a *App) ShutDown() error {
	defer a.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, u := range a.Exports() {
		if err := a.registry.Unregister(ctx, u); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Gen(a.baseCtx, "service unregister, url:%s", u.SimpleString())
	}
	if err := a.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.tracer.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Wrapf(errs[0], "app %s shutdown with %d errors", a.name, len(errs))
	}
	return nil
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	return out
}

// LocalIP 第一个非回环的ipv4地址
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", errors.Wrap(err, "interface addrs")
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "", errors.New("get local ip addr failed")
}
