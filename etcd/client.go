package etcd

import (
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/env"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
)

const _defaultDialTimeout = 10 * time.Second

type Option func(*option)

type option struct {
	dialTimeout time.Duration
	username    string
	password    string
	eps         []string
	block       bool
}

func DialTimeout(d time.Duration) Option {
	return func(o *option) {
		o.dialTimeout = d
	}
}

func Username(username string) Option {
	return func(o *option) {
		o.username = username
	}
}

func Password(password string) Option {
	return func(o *option) {
		o.password = password
	}
}

func Endpoints(eps []string) Option {
	return func(o *option) {
		o.eps = eps
	}
}

// Block 建立连接前阻塞 最长dialTimeout
func Block() Option {
	return func(o *option) {
		o.block = true
	}
}

// FromEnv 读取QVR_ETCD_*环境变量 显式设置的选项优先
func FromEnv() Option {
	return func(o *option) {
		eps, user, pw, timeout := env.GetEtcdEnv()
		if len(o.eps) == 0 {
			o.eps = eps
		}
		if o.username == "" {
			o.username = user
		}
		if o.password == "" {
			o.password = pw
		}
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			o.dialTimeout = d
		}
	}
}

func config(opts ...Option) (clientv3.Config, error) {
	o := option{
		dialTimeout: _defaultDialTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if len(o.eps) == 0 {
		return clientv3.Config{}, errors.New("etcd endpoints is empty")
	}
	cfg := clientv3.Config{
		Endpoints:   o.eps,
		DialTimeout: o.dialTimeout,
		Username:    o.username,
		Password:    o.password,
	}
	if o.block {
		cfg.DialOptions = []grpc.DialOption{grpc.WithBlock()}
	}
	return cfg, nil
}

func NewEtcdClient(opts ...Option) (*clientv3.Client, error) {
	cfg, err := config(opts...)
	if err != nil {
		return nil, err
	}
	c, err := clientv3.New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "etcd dial %v", cfg.Endpoints)
	}
	return c, nil
}
