package sentry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/env"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

type Option func(*Metric)

func SetServerName(serverName string) Option {
	return func(m *Metric) {
		m.serverName = serverName
	}
}

// SetDsn 未设置时读取环境变量QVR_SENTRY_DSN
func SetDsn(dsn string) Option {
	return func(m *Metric) {
		m.dsn = dsn
	}
}

type Metric struct {
	dsn        string
	serverName string

	mu      sync.RWMutex
	isAlive bool
}

var (
	_m    *Metric
	_once sync.Once
)

func InitMetric(opts ...Option) *Metric {
	_once.Do(func() {
		_m = &Metric{}
		for _, opt := range opts {
			if opt != nil {
				opt(_m)
			}
		}
		if _m.dsn == "" {
			_m.dsn = env.GetEnv(env.QvrSentryDsn)
		}
		if _m.serverName == "" {
			u, _ := uuid.NewUUID()
			_m.serverName = u.String()
		}
	})
	return _m
}

func (m *Metric) Start() {
	if m.dsn == "" {
		return
	}
	if err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:              m.dsn,
		AttachStacktrace: true,
		ServerName:       m.serverName,
	}); err != nil {
		log.Println(fmt.Sprintf("init sentry error:%v", err))
		return
	}
	m.mu.Lock()
	m.isAlive = true
	m.mu.Unlock()
}

func (m *Metric) alive() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isAlive
}

// ErrorReport 未启动时忽略 异步上报不阻塞调用方
func ErrorReport(ctx context.Context, err error) {
	if err == nil || !_m.alive() {
		return
	}
	go func() {
		hub := sentrygo.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentrygo.CurrentHub().Clone()
		}
		hub.CaptureException(err)
		hub.Flush(5 * time.Second)
	}()
}
