package consul

import (
	"net/http"
	"strings"
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/env"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
)

type Option func(*option)

type option struct {
	transport *http.Transport
	waitTime  time.Duration
	token     string
}

func Transport(transport *http.Transport) Option {
	return func(o *option) {
		o.transport = transport
	}
}

// WaitTime 阻塞查询的最长等待时间
func WaitTime(waitTime time.Duration) Option {
	return func(o *option) {
		o.waitTime = waitTime
	}
}

func Token(token string) Option {
	return func(o *option) {
		o.token = token
	}
}

// NewConsulClient addrs为逗号分隔的地址 依次尝试 为空时读取QVR_CONSUL_HTTP_ADDR
func NewConsulClient(addrs string, opts ...Option) (*api.Client, error) {
	o := option{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if strings.TrimSpace(addrs) == "" {
		addrs = env.GetEnv(env.QvrConsulAddr)
	}
	var lastErr error
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimRight(strings.TrimSpace(addr), "/")
		if addr == "" {
			continue
		}
		config := api.DefaultConfig()
		config.Address = addr
		if o.transport != nil {
			config.Transport = o.transport
		}
		if o.waitTime > 0 {
			config.WaitTime = o.waitTime
		}
		if o.token != "" {
			config.Token = o.token
		}
		cli, err := api.NewClient(config)
		if err == nil {
			return cli, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, errors.New("consul addr is empty")
	}
	return nil, errors.Wrapf(lastErr, "init consul addrs:%s", addrs)
}
