package nacos

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/wangshanqi84-gif/quiver/cores/env"
	"github.com/wangshanqi84-gif/quiver/cores/logger"

	"github.com/nacos-group/nacos-sdk-go/clients"
	"github.com/nacos-group/nacos-sdk-go/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/common/constant"
	"github.com/nacos-group/nacos-sdk-go/vo"
	"github.com/pkg/errors"
)

type Option func(*options)

type options struct {
	timeOut    uint64
	logger     *logger.Logger
	namespace  string
	appName    string
	accessKey  string
	secretKey  string
	serverPath string
	userName   string
	password   string
}

// WithTimeOut 请求超时 毫秒
func WithTimeOut(timeOut uint64) Option {
	return func(o *options) {
		o.timeOut = timeOut
	}
}

func WithLogger(logger *logger.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

func WithAppName(appName string) Option {
	return func(o *options) {
		o.appName = appName
	}
}

// WithAccessKey access-key 鉴权
func WithAccessKey(accessKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
	}
}

// WithSecretKey secret-key 鉴权
func WithSecretKey(secretKey string) Option {
	return func(o *options) {
		o.secretKey = secretKey
	}
}

// WithServerPath 形如http://127.0.0.1:8848/nacos
func WithServerPath(path string) Option {
	return func(o *options) {
		o.serverPath = path
	}
}

func WithUserName(userName string) Option {
	return func(o *options) {
		o.userName = userName
	}
}

func WithPassword(password string) Option {
	return func(o *options) {
		o.password = password
	}
}

// FromEnv 读取QVR_NACOS_*环境变量 显式设置的选项优先
func FromEnv() Option {
	return func(o *options) {
		path, access, secret, user, pw := env.GetNacosEnv()
		fill := func(dst *string, v string) {
			if *dst == "" {
				*dst = v
			}
		}
		fill(&o.serverPath, path)
		fill(&o.accessKey, access)
		fill(&o.secretKey, secret)
		fill(&o.userName, user)
		fill(&o.password, pw)
		fill(&o.namespace, env.GetEnv(env.QvrNacosNamespace))
	}
}

// serverConfig 解析服务地址 上下文路径默认/nacos
func serverConfig(path string) (constant.ServerConfig, error) {
	us, err := url.Parse(path)
	if err != nil {
		return constant.ServerConfig{}, errors.Wrapf(err, "nacos server path %s", path)
	}
	if us.Scheme == "" || us.Host == "" {
		return constant.ServerConfig{}, errors.Errorf("nacos server path %s error", path)
	}
	port, err := strconv.ParseUint(us.Port(), 10, 64)
	if err != nil {
		return constant.ServerConfig{}, errors.Errorf("nacos server host %s error", us.Host)
	}
	contextPath := strings.TrimRight(us.Path, "/")
	if contextPath == "" {
		contextPath = "/nacos"
	}
	return constant.ServerConfig{
		Scheme:      us.Scheme,
		IpAddr:      us.Hostname(),
		Port:        port,
		ContextPath: contextPath,
	}, nil
}

func clientParam(opts ...Option) (vo.NacosClientParam, error) {
	o := &options{
		timeOut:  5000,
		appName:  "quiver",
		userName: "nacos",
		password: "nacos",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	sc, err := serverConfig(o.serverPath)
	if err != nil {
		return vo.NacosClientParam{}, err
	}
	clientConfig := constant.ClientConfig{
		TimeoutMs:           o.timeOut,
		NamespaceId:         o.namespace,
		AppName:             o.appName,
		NotLoadCacheAtStart: true,
		AccessKey:           o.accessKey,
		SecretKey:           o.secretKey,
		Username:            o.userName,
		Password:            o.password,
	}
	if o.logger != nil {
		clientConfig.CustomLogger = &Logger{Logger: o.logger}
	}
	return vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: []constant.ServerConfig{sc},
	}, nil
}

func NewNamingClient(opts ...Option) (naming_client.INamingClient, error) {
	param, err := clientParam(opts...)
	if err != nil {
		return nil, err
	}
	cli, err := clients.NewNamingClient(param)
	if err != nil {
		return nil, errors.Wrap(err, "nacos naming client")
	}
	return cli, nil
}

func NewConfigClient(opts ...Option) (config_client.IConfigClient, error) {
	param, err := clientParam(opts...)
	if err != nil {
		return nil, err
	}
	cli, err := clients.NewConfigClient(param)
	if err != nil {
		return nil, errors.Wrap(err, "nacos config client")
	}
	return cli, nil
}
