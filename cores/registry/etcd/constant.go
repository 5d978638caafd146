package etcd

import "time"

const (
	_defaultLeaseTTL   = 10 * time.Second
	_defaultRetryTimes = 5
	_registerTimeout   = 3 * time.Second
)
