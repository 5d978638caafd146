package redis

import (
	redisgo "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

type builder func(c *Client) redisgo.UniversalClient

var builders = map[string]builder{
	ModelSingleton: func(c *Client) redisgo.UniversalClient {
		return redisgo.NewClient(&redisgo.Options{
			Addr:         c.addrs[0],
			DB:           c.db,
			MaxRetries:   c.retry,
			IdleTimeout:  c.idleTimeout,
			DialTimeout:  _dialTimeout,
			ReadTimeout:  c.readTimeout,
			WriteTimeout: c.writeTimeout,
			PoolSize:     c.poolSize,
			MinIdleConns: c.minIdleConn,
			Username:     c.username,
			Password:     c.password,
		})
	},
	// 哨兵模式 主节点名为{name}_master
	ModelSentinel: func(c *Client) redisgo.UniversalClient {
		return redisgo.NewFailoverClient(&redisgo.FailoverOptions{
			MasterName:    c.name + _masterSuffix,
			SentinelAddrs: c.addrs,
			DB:            c.db,
			MaxRetries:    c.retry,
			IdleTimeout:   c.idleTimeout,
			DialTimeout:   _dialTimeout,
			ReadTimeout:   c.readTimeout,
			WriteTimeout:  c.writeTimeout,
			PoolSize:      c.poolSize,
			MinIdleConns:  c.minIdleConn,
			Username:      c.username,
			Password:      c.password,
		})
	},
	ModelCluster: func(c *Client) redisgo.UniversalClient {
		return redisgo.NewClusterClient(&redisgo.ClusterOptions{
			Addrs:        c.addrs,
			MaxRetries:   c.retry,
			IdleTimeout:  c.idleTimeout,
			DialTimeout:  _dialTimeout,
			ReadTimeout:  c.readTimeout,
			WriteTimeout: c.writeTimeout,
			PoolSize:     c.poolSize,
			MinIdleConns: c.minIdleConn,
			Username:     c.username,
			Password:     c.password,
		})
	},
}

// build 创建命令客户端及对应的redsync实例
func (c *Client) build() {
	cmd := builders[c.model](c)
	c.IRedisCmd = cmd
	c.rs = redsync.New(goredis.NewPool(cmd))
}
