package redis

import (
	"context"
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/env"

	redisgo "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/pkg/errors"
)

type Option func(c *Client)

// Model 部署模式 singleton/sentinel/cluster
func Model(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func DB(db int) Option {
	return func(c *Client) {
		c.db = db
	}
}

// Retry 命令重试次数 -1表示不重试
func Retry(retry int) Option {
	return func(c *Client) {
		c.retry = retry
	}
}

func IdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.idleTimeout = d
	}
}

func ReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = d
	}
}

func WriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

func PoolSize(poolSize int) Option {
	return func(c *Client) {
		c.poolSize = poolSize
	}
}

func MinIdleConn(minIdleConn int) Option {
	return func(c *Client) {
		c.minIdleConn = minIdleConn
	}
}

// Name 哨兵模式下的主节点前缀
func Name(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// Addrs 未设置时读取QVR_REDIS_ADDR
func Addrs(addrs []string) Option {
	return func(c *Client) {
		c.addrs = addrs
	}
}

func Username(username string) Option {
	return func(c *Client) {
		c.username = username
	}
}

func Password(password string) Option {
	return func(c *Client) {
		c.password = password
	}
}

// IRedisCmd 注册中心使用的命令集合
type IRedisCmd interface {
	redisgo.Cmdable
	Subscribe(ctx context.Context, channels ...string) *redisgo.PubSub
	Close() error
}

// Mutex 分布式锁 只做单次尝试
type Mutex struct {
	*redsync.Mutex
	name string
}

func (m *Mutex) Name() string {
	return m.name
}

// TryLock 锁被占用时返回false 不返回错误
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	if err := m.TryLockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) {
			return false, nil
		}
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) {
			return false, nil
		}
		return false, errors.Wrapf(err, "redis lock %s", m.name)
	}
	return true, nil
}

func (m *Mutex) UnLock(ctx context.Context) (bool, error) {
	return m.UnlockContext(ctx)
}

type Client struct {
	IRedisCmd
	rs *redsync.Redsync

	name         string
	addrs        []string
	model        string
	db           int
	retry        int
	idleTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	poolSize     int
	minIdleConn  int
	username     string
	password     string
}

func NewClient(opts ...Option) (*Client, error) {
	c := Client{
		model:        ModelSingleton,
		retry:        _retry,
		idleTimeout:  _idleTimeout,
		readTimeout:  _readTimeout,
		writeTimeout: _writeTimeout,
		poolSize:     _poolSize,
		minIdleConn:  _minIdleConn,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if len(c.addrs) == 0 {
		c.addrs = env.GetList(env.QvrRedisAddr)
	}
	if len(c.addrs) == 0 {
		return nil, errors.New("redis server addr is empty")
	}
	if _, has := builders[c.model]; !has {
		return nil, errors.Errorf("redis model %s not support", c.model)
	}
	c.build()
	return &c, nil
}

func (c *Client) Model() string {
	return c.model
}

// NewMutex expired为0时使用默认过期时间
func (c *Client) NewMutex(name string, expired time.Duration) *Mutex {
	if expired <= 0 {
		expired = _mutexExpire
	}
	return &Mutex{
		name:  name,
		Mutex: c.rs.NewMutex(name, redsync.WithExpiry(expired), redsync.WithTries(1)),
	}
}
