// Package failback 失败重试的注册中心基础实现
package failback

import (
	"context"
	"errors"
	"sync"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/metric/prom"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"
)

// Doer 具体的注册/订阅/发现实现
type Doer interface {
	DoRegister(ctx context.Context, u *url.URL) error
	DoUnregister(ctx context.Context, u *url.URL) error
	DoSubscribe(ctx context.Context, key *url.URL, listener registry.NotifyListener) error
	DoUnsubscribe(ctx context.Context, key *url.URL, listener registry.NotifyListener) error
	DoDiscover(ctx context.Context, key *url.URL) ([]*url.URL, error)
}

type op int8

const (
	opRegister op = iota
	opUnregister
	opSubscribe
	opUnsubscribe
)

func (o op) String() string {
	switch o {
	case opRegister:
		return "register"
	case opUnregister:
		return "unregister"
	case opSubscribe:
		return "subscribe"
	case opUnsubscribe:
		return "unsubscribe"
	}
	return "unknown"
}

// pair 同一地址+监听者 后发起的操作覆盖之前的
type pair struct {
	id       string
	listener registry.NotifyListener
}

// pairLock 同一对象上的后端调用串行执行 refs为0时回收
type pairLock struct {
	sync.Mutex
	refs int
}

type pendingOp struct {
	op       op
	key      *url.URL
	listener registry.NotifyListener
	gen      uint64
	attempts int
}

type Option func(o *options)

type options struct {
	ctx         context.Context
	retryPeriod time.Duration
}

func Context(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// RetryPeriod 重试周期 默认取注册中心地址的retryPeriod参数
func RetryPeriod(d time.Duration) Option {
	return func(o *options) { o.retryPeriod = d }
}

type Registry struct {
	url  *url.URL
	doer Doer
	opts *options

	mu      sync.Mutex
	gen     uint64
	latest  map[pair]uint64
	pending map[pair]*pendingOp
	locks   map[pair]*pairLock

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(registryURL *url.URL, doer Doer, opts ...Option) *Registry {
	opt := &options{
		ctx:         context.Background(),
		retryPeriod: time.Duration(registryURL.IntParameter(url.ParamRetryPeriod, url.DefaultRetryPeriod)) * time.Millisecond,
	}
	for _, o := range opts {
		if o != nil {
			o(opt)
		}
	}
	if opt.retryPeriod <= 0 {
		opt.retryPeriod = url.DefaultRetryPeriod * time.Millisecond
	}
	r := &Registry{
		url:     registryURL.Copy(),
		doer:    doer,
		opts:    opt,
		latest:  make(map[pair]uint64),
		pending: make(map[pair]*pendingOp),
		locks:   make(map[pair]*pairLock),
		done:    make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(opt.ctx)
	go r.loop()
	return r
}

func (r *Registry) URL() *url.URL {
	return r.url
}

// Register 注册服务 失败后台重试
func (r *Registry) Register(ctx context.Context, u *url.URL) error {
	if u == nil {
		return gErrors.Frameworkf(gErrors.ErrIllegalState, "register with nil url")
	}
	return r.run(ctx, opRegister, u, nil)
}

// Unregister 取消注册 失败后台重试
func (r *Registry) Unregister(ctx context.Context, u *url.URL) error {
	if u == nil {
		return gErrors.Frameworkf(gErrors.ErrIllegalState, "unregister with nil url")
	}
	return r.run(ctx, opUnregister, u, nil)
}

// Subscribe 订阅 后端失败不返回错误 记录后重试
// 同一地址+监听者的调用与重试串行执行 监听者不能在Notify中对同一地址订阅或取消订阅
func (r *Registry) Subscribe(ctx context.Context, key *url.URL, listener registry.NotifyListener) error {
	if key == nil || listener == nil {
		return gErrors.Frameworkf(gErrors.ErrIllegalState, "subscribe with nil url or listener")
	}
	return r.run(ctx, opSubscribe, key, listener)
}

// Unsubscribe 取消订阅 后端失败不返回错误 记录后重试
func (r *Registry) Unsubscribe(ctx context.Context, key *url.URL, listener registry.NotifyListener) error {
	if key == nil || listener == nil {
		return gErrors.Frameworkf(gErrors.ErrIllegalState, "unsubscribe with nil url or listener")
	}
	return r.run(ctx, opUnsubscribe, key, listener)
}

// Discover 发现服务 错误直接返回调用方
func (r *Registry) Discover(ctx context.Context, key *url.URL) ([]*url.URL, error) {
	if key == nil {
		return nil, gErrors.Frameworkf(gErrors.ErrIllegalState, "discover with nil url")
	}
	urls, err := r.doer.DoDiscover(ctx, key)
	if err != nil {
		prom.RegistryOp("discover", prom.ResultFailed)
		return nil, err
	}
	prom.RegistryOp("discover", prom.ResultOK)
	if urls == nil {
		urls = []*url.URL{}
	}
	return urls, nil
}

func (r *Registry) run(ctx context.Context, o op, key *url.URL, listener registry.NotifyListener) error {
	p := pair{id: key.Identity(), listener: listener}
	unlock := r.lockPair(p)
	defer unlock()

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.latest[p] = gen
	// 同一对象上未完成的重试被本次调用取代
	delete(r.pending, p)
	prom.FailbackPending(len(r.pending))
	r.mu.Unlock()

	err := r.do(ctx, o, key, listener)
	if err == nil {
		prom.RegistryOp(o.String(), prom.ResultOK)
		return nil
	}
	if errors.Is(err, gErrors.ErrIllegalState) {
		prom.RegistryOp(o.String(), prom.ResultFailed)
		return err
	}
	logger.Warn(ctx, "failback registry %s failed, url:%s, waiting for retry, err:%v", o, key.SimpleString(), err)
	prom.RegistryOp(o.String(), prom.ResultPending)

	r.mu.Lock()
	if r.latest[p] == gen {
		r.pending[p] = &pendingOp{
			op:       o,
			key:      key.Copy(),
			listener: listener,
			gen:      gen,
		}
	}
	prom.FailbackPending(len(r.pending))
	r.mu.Unlock()
	return nil
}

func (r *Registry) lockPair(p pair) func() {
	r.mu.Lock()
	l, ok := r.locks[p]
	if !ok {
		l = &pairLock{}
		r.locks[p] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, p)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) do(ctx context.Context, o op, key *url.URL, listener registry.NotifyListener) error {
	switch o {
	case opRegister:
		return r.doer.DoRegister(ctx, key)
	case opUnregister:
		return r.doer.DoUnregister(ctx, key)
	case opSubscribe:
		return r.doer.DoSubscribe(ctx, key, listener)
	case opUnsubscribe:
		return r.doer.DoUnsubscribe(ctx, key, listener)
	}
	return gErrors.Frameworkf(gErrors.ErrIllegalState, "unknown operation %d", o)
}

func (r *Registry) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.retryPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.retry(r.ctx)
		}
	}
}

// retry 重试所有未完成的操作 已被新调用取代的跳过
func (r *Registry) retry(ctx context.Context) {
	r.mu.Lock()
	ops := make([]*pendingOp, 0, len(r.pending))
	for _, p := range r.pending {
		ops = append(ops, p)
	}
	r.mu.Unlock()

	for _, p := range ops {
		if ctx.Err() != nil {
			return
		}
		r.retryOne(ctx, p)
	}
}

// retryOne 持有对象锁执行 期间新的调用等待本次结束后再执行
func (r *Registry) retryOne(ctx context.Context, p *pendingOp) {
	k := pair{id: p.key.Identity(), listener: p.listener}
	unlock := r.lockPair(k)
	defer unlock()

	r.mu.Lock()
	current := r.pending[k] == p
	r.mu.Unlock()
	if !current {
		return
	}
	err := r.do(ctx, p.op, p.key, p.listener)

	r.mu.Lock()
	if r.pending[k] == p {
		switch {
		case err == nil:
			delete(r.pending, k)
			logger.Info(ctx, "failback registry retry %s success, url:%s", p.op, p.key.SimpleString())
		case errors.Is(err, gErrors.ErrIllegalState):
			delete(r.pending, k)
			logger.Error(ctx, "failback registry retry %s dropped, url:%s, err:%v", p.op, p.key.SimpleString(), err)
		default:
			p.attempts++
			logger.Warn(ctx, "failback registry retry %s failed %d times, url:%s, err:%v", p.op, p.attempts, p.key.SimpleString(), err)
		}
	}
	prom.FailbackPending(len(r.pending))
	r.mu.Unlock()
	if err == nil {
		prom.RegistryOp(p.op.String(), prom.ResultOK)
	}
}

// Pending 等待重试的操作数
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close 停止重试
func (r *Registry) Close() error {
	r.cancel()
	<-r.done
	return nil
}
