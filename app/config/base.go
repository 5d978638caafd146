package config

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wangshanqi84-gif/quiver/configuration"
	cfgEtcd "github.com/wangshanqi84-gif/quiver/configuration/etcd"
	"github.com/wangshanqi84-gif/quiver/configuration/file"
	cfgNacos "github.com/wangshanqi84-gif/quiver/configuration/nacos"
	"github.com/wangshanqi84-gif/quiver/cores/env"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/etcd"
	"github.com/wangshanqi84-gif/quiver/logger"
	"github.com/wangshanqi84-gif/quiver/nacos"

	"github.com/pkg/errors"
)

// LogConfig 日志配置
type LogConfig struct {
	// 日志分割方式 day/hour
	Rotation string `yaml:"rotation" json:"rotation" xml:"rotation"`
	// 日志保存天数
	SaveDays int `yaml:"saveDays" json:"saveDays" xml:"saveDays"`
	// 日志级别
	Level string `yaml:"level" json:"level" xml:"level"`
	// 日志格式 console/json
	Format string `yaml:"format" json:"format" xml:"format"`
}

// RegistryConfig 注册中心配置
type RegistryConfig struct {
	// 后端类型 etcd/consul/nacos/redis/memory
	Backend string `yaml:"backend" json:"backend" xml:"backend"`
	// 地址列表 为空时读取对应环境变量
	Address []string `yaml:"address" json:"address" xml:"address"`
	// 根路径 默认/quiver
	Root string `yaml:"root" json:"root" xml:"root"`
	// 默认分组
	Group string `yaml:"group" json:"group" xml:"group"`
	// 失败重试间隔(毫秒)
	RetryPeriod int `yaml:"retryPeriod" json:"retryPeriod" xml:"retryPeriod"`
	// 注册节点有效期 如10s
	TTL      string `yaml:"ttl" json:"ttl" xml:"ttl"`
	Username string `yaml:"username" json:"username" xml:"username"`
	Password string `yaml:"password" json:"password" xml:"password"`
	// nacos命名空间
	Namespace string `yaml:"namespace" json:"namespace" xml:"namespace"`
	// redis模式 singleton/sentinel/cluster
	Model string `yaml:"model" json:"model" xml:"model"`
	// redis db
	DB int `yaml:"db" json:"db" xml:"db"`
}

// CodecConfig 编解码配置
type CodecConfig struct {
	// 默认序列化方式 json/protobuf
	Serialization string `yaml:"serialization" json:"serialization" xml:"serialization"`
}

// MetricConfig 调试端口配置 端口为0时不启动
type MetricConfig struct {
	Port  int  `yaml:"port" json:"port" xml:"port"`
	Pprof bool `yaml:"pprof" json:"pprof" xml:"pprof"`
}

type ServiceConfig struct {
	Log      *LogConfig      `yaml:"log" json:"log" xml:"log"`
	Registry *RegistryConfig `yaml:"registry" json:"registry" xml:"registry"`
	Codec    *CodecConfig    `yaml:"codec" json:"codec" xml:"codec"`
	Metric   *MetricConfig   `yaml:"metric" json:"metric" xml:"metric"`
}

// TTLDuration 未配置或非法时返回0 由后端使用默认值
func (c *RegistryConfig) TTLDuration() time.Duration {
	if c == nil || c.TTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// URL 注册中心地址 参数携带分组及重试间隔
func (c *RegistryConfig) URL() *url.URL {
	params := map[string]string{}
	if c.Group != "" {
		params[url.ParamGroup] = c.Group
	}
	if c.RetryPeriod > 0 {
		params[url.ParamRetryPeriod] = strconv.Itoa(c.RetryPeriod)
	}
	host, port := "", 0
	if len(c.Address) > 0 {
		host = c.Address[0]
		if h, p, err := net.SplitHostPort(host); err == nil {
			host = h
			port, _ = strconv.Atoi(p)
		}
	}
	return url.New(c.Backend, host, port, c.RootPath(), params)
}

func (c *RegistryConfig) RootPath() string {
	if c.Root == "" {
		return registry.DefaultRoot
	}
	return "/" + strings.Trim(c.Root, "/")
}

/////////////////////////////////////////////////

const (
	defaultConfigSource = "file"
	defaultConfigFormat = configuration.FormatYaml
)

type Option func(*option)

type option struct {
	path     string
	onChange configuration.OnChange
}

// WithPath 文件配置路径
func WithPath(path string) Option {
	return func(o *option) {
		o.path = path
	}
}

// WithWatch 远程配置变更回调
func WithWatch(fn configuration.OnChange) Option {
	return func(o *option) {
		o.onChange = fn
	}
}

// Initialize 按QVR_CONFIG_SOURCE选择来源并加载name对应配置
// 文件来源时name为空则使用WithPath
func Initialize(ctx context.Context, name string, v interface{}, opts ...Option) (configuration.IConfig, error) {
	o := option{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	source := strings.ToLower(env.GetEnvDefault(env.QvrConfigSource, defaultConfigSource))
	format := strings.ToLower(env.GetEnvDefault(env.QvrConfigFormat, defaultConfigFormat))

	var cfg configuration.IConfig
	switch source {
	case "file":
		if o.path != "" {
			name = o.path
		}
		if name == "" {
			return nil, errors.New("config file path undefined")
		}
		cfg = file.NewConfigClient(ctx, format)
	case "etcd":
		cli, err := etcd.NewEtcdClient(etcd.FromEnv())
		if err != nil {
			return nil, err
		}
		cfg = cfgEtcd.NewConfigClient(ctx, cli, format, cfgEtcd.Watch(o.onChange))
	case "nacos":
		cli, err := nacos.NewConfigClient(nacos.FromEnv(), nacos.WithLogger(logger.GetGen()))
		if err != nil {
			return nil, err
		}
		cfg = cfgNacos.NewConfigClient(ctx, cli, format, cfgNacos.Watch(o.onChange))
	default:
		return nil, errors.Errorf("config source ignore, source:%s", source)
	}
	if err := cfg.GetConfig(name, v); err != nil {
		return nil, err
	}
	return cfg, nil
}
