package pprof

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/metric/prom"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/pkg/errors"
)

type Option func(*Metric)

// SetPprof 是否开放/debug/pprof
func SetPprof(open bool) Option {
	return func(m *Metric) {
		m.pprof = open
	}
}

func SetPort(port int) Option {
	return func(m *Metric) {
		m.port = port
	}
}

// Metric 调试端口 提供/metrics及可选的pprof
type Metric struct {
	port  int
	pprof bool
	mux   *http.ServeMux
	srv   *http.Server
}

func New(opts ...Option) *Metric {
	m := &Metric{}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	if m.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	m.mux = mux
	return m
}

func (m *Metric) Handler() http.Handler {
	return m.mux
}

// Start 监听端口后返回 ctx结束时关闭
func (m *Metric) Start(ctx context.Context) (net.Addr, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", m.port))
	if err != nil {
		return nil, errors.Wrapf(err, "metric listen port %d", m.port)
	}
	m.srv = &http.Server{
		Handler:      m.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		if err := m.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "metric server stopped, err:%v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = m.srv.Shutdown(sctx)
	}()
	return ln.Addr(), nil
}
