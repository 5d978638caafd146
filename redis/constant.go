package redis

import "time"

const (
	_dialTimeout   = 5 * time.Second
	_readTimeout   = 3 * time.Second
	_writeTimeout  = 3 * time.Second
	_idleTimeout   = 30 * time.Second
	_retry         = 3   // 默认重试次数
	_poolSize      = 20  // 注册中心连接数较少
	_minIdleConn   = 2   // 最小空闲连接
	_mutexExpire   = 8 * time.Second
	_masterSuffix  = "_master"
)

const (
	ModelSingleton = "singleton" // 标准模式
	ModelSentinel  = "sentinel"  // 哨兵模式
	ModelCluster   = "cluster"   // 集群模式
)
