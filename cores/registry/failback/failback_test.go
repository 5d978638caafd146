package failback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
)

var errDown = errors.New("backend down")

type flakyDoer struct {
	mu       sync.Mutex
	fail     bool
	calls    map[string]int
	discover []*url.URL
}

func newFlakyDoer() *flakyDoer {
	return &flakyDoer{calls: make(map[string]int)}
}

func (d *flakyDoer) setFail(fail bool) {
	d.mu.Lock()
	d.fail = fail
	d.mu.Unlock()
}

func (d *flakyDoer) count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

func (d *flakyDoer) call(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	if d.fail {
		return errDown
	}
	return nil
}

func (d *flakyDoer) DoRegister(_ context.Context, _ *url.URL) error   { return d.call("register") }
func (d *flakyDoer) DoUnregister(_ context.Context, _ *url.URL) error { return d.call("unregister") }
func (d *flakyDoer) DoSubscribe(_ context.Context, _ *url.URL, _ registry.NotifyListener) error {
	return d.call("subscribe")
}
func (d *flakyDoer) DoUnsubscribe(_ context.Context, _ *url.URL, _ registry.NotifyListener) error {
	return d.call("unsubscribe")
}
func (d *flakyDoer) DoDiscover(_ context.Context, _ *url.URL) ([]*url.URL, error) {
	if err := d.call("discover"); err != nil {
		return nil, err
	}
	return d.discover, nil
}

type nopListener struct{}

func (nopListener) Notify(*url.URL, []*url.URL) {}

func newTestRegistry(d Doer) *Registry {
	// 周期足够长 测试中手动触发重试
	return New(url.New("memory", "127.0.0.1", 0, "registry", nil), d, RetryPeriod(time.Hour))
}

func TestSubscribeFailureRetried(t *testing.T) {
	d := newFlakyDoer()
	d.setFail(true)
	r := newTestRegistry(d)
	defer r.Close()

	key := url.New("quiver", "10.0.0.1", 0, "com.foo.Svc", nil)
	l := &nopListener{}
	if err := r.Subscribe(context.Background(), key, l); err != nil {
		t.Fatalf("subscribe must swallow backend failures, got %v", err)
	}
	if r.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", r.Pending())
	}
	r.retry(context.Background())
	if r.Pending() != 1 {
		t.Fatalf("failed retry must stay pending")
	}
	d.setFail(false)
	r.retry(context.Background())
	if r.Pending() != 0 {
		t.Fatalf("pending = %d after successful retry", r.Pending())
	}
	if got := d.count("subscribe"); got != 3 {
		t.Fatalf("subscribe calls = %d, want 3", got)
	}
}

func TestLatestCallWins(t *testing.T) {
	d := newFlakyDoer()
	d.setFail(true)
	r := newTestRegistry(d)
	defer r.Close()

	key := url.New("quiver", "10.0.0.1", 0, "com.foo.Svc", nil)
	l := &nopListener{}
	_ = r.Subscribe(context.Background(), key, l)
	_ = r.Unsubscribe(context.Background(), key, l)
	if r.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", r.Pending())
	}
	d.setFail(false)
	r.retry(context.Background())
	if got := d.count("subscribe"); got != 1 {
		t.Fatalf("superseded subscribe was retried, calls = %d", got)
	}
	if got := d.count("unsubscribe"); got != 2 {
		t.Fatalf("unsubscribe calls = %d, want 2", got)
	}
}

func TestSuccessfulCallCancelsPending(t *testing.T) {
	d := newFlakyDoer()
	d.setFail(true)
	r := newTestRegistry(d)
	defer r.Close()

	u := url.New("quiver", "10.0.0.2", 8002, "com.foo.Svc", nil)
	_ = r.Register(context.Background(), u)
	d.setFail(false)
	if err := r.Unregister(context.Background(), u); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if r.Pending() != 0 {
		t.Fatalf("register retry must be cancelled by unregister")
	}
}

type illegalDoer struct {
	*flakyDoer
}

func (d illegalDoer) DoUnsubscribe(_ context.Context, _ *url.URL, _ registry.NotifyListener) error {
	return gErrors.Frameworkf(gErrors.ErrIllegalState, "not subscribed")
}

func TestIllegalStateIsSynchronous(t *testing.T) {
	r := newTestRegistry(illegalDoer{newFlakyDoer()})
	defer r.Close()

	err := r.Unsubscribe(context.Background(), url.New("quiver", "h", 0, "p", nil), &nopListener{})
	if !errors.Is(err, gErrors.ErrIllegalState) {
		t.Fatalf("expected illegal state, got %v", err)
	}
	if r.Pending() != 0 {
		t.Fatalf("illegal state must not be retried")
	}
}

func TestNilArguments(t *testing.T) {
	r := newTestRegistry(newFlakyDoer())
	defer r.Close()

	if err := r.Subscribe(context.Background(), nil, &nopListener{}); !errors.Is(err, gErrors.ErrIllegalState) {
		t.Fatalf("nil url: %v", err)
	}
	if err := r.Subscribe(context.Background(), url.New("quiver", "h", 0, "p", nil), nil); !errors.Is(err, gErrors.ErrIllegalState) {
		t.Fatalf("nil listener: %v", err)
	}
	if _, err := r.Discover(context.Background(), nil); !errors.Is(err, gErrors.ErrIllegalState) {
		t.Fatalf("nil discover: %v", err)
	}
}

func TestDiscover(t *testing.T) {
	d := newFlakyDoer()
	r := newTestRegistry(d)
	defer r.Close()

	key := url.New("quiver", "h", 0, "p", nil)
	urls, err := r.Discover(context.Background(), key)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if urls == nil || len(urls) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", urls)
	}
	d.setFail(true)
	if _, err := r.Discover(context.Background(), key); !errors.Is(err, errDown) {
		t.Fatalf("discover errors must surface, got %v", err)
	}
	if r.Pending() != 0 {
		t.Fatalf("discover is never retried")
	}
}

func TestRetryLoop(t *testing.T) {
	d := newFlakyDoer()
	d.setFail(true)
	r := New(url.New("memory", "127.0.0.1", 0, "registry", map[string]string{url.ParamRetryPeriod: "10"}), d)
	defer r.Close()

	_ = r.Register(context.Background(), url.New("quiver", "10.0.0.3", 1, "p", nil))
	d.setFail(false)
	deadline := time.Now().Add(2 * time.Second)
	for r.Pending() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("retry loop never drained pending ops")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// gateDoer 订阅可被挂起 记录订阅状态
type gateDoer struct {
	*flakyDoer
	gated      bool
	subscribed bool
	entered    chan struct{}
	release    chan struct{}
}

func newGateDoer() *gateDoer {
	return &gateDoer{
		flakyDoer: newFlakyDoer(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (d *gateDoer) setGated(gated bool) {
	d.mu.Lock()
	d.gated = gated
	d.mu.Unlock()
}

func (d *gateDoer) isSubscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribed
}

func (d *gateDoer) DoSubscribe(_ context.Context, _ *url.URL, _ registry.NotifyListener) error {
	d.mu.Lock()
	gated := d.gated
	d.mu.Unlock()
	if gated {
		d.entered <- struct{}{}
		<-d.release
	}
	if err := d.call("subscribe"); err != nil {
		return err
	}
	d.mu.Lock()
	d.subscribed = true
	d.mu.Unlock()
	return nil
}

func (d *gateDoer) DoUnsubscribe(_ context.Context, _ *url.URL, _ registry.NotifyListener) error {
	if err := d.call("unsubscribe"); err != nil {
		return err
	}
	d.mu.Lock()
	d.subscribed = false
	d.mu.Unlock()
	return nil
}

func TestInFlightRetryDoesNotOverrideNewerCall(t *testing.T) {
	d := newGateDoer()
	d.setFail(true)
	r := newTestRegistry(d)
	defer r.Close()

	ctx := context.Background()
	key := url.New("quiver", "10.0.0.1", 0, "com.foo.Svc", nil)
	l := &nopListener{}
	_ = r.Subscribe(ctx, key, l)
	if r.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", r.Pending())
	}

	d.setFail(false)
	d.setGated(true)
	retried := make(chan struct{})
	go func() {
		r.retry(ctx)
		close(retried)
	}()
	<-d.entered
	d.setGated(false)

	unsubscribed := make(chan error, 1)
	go func() {
		unsubscribed <- r.Unsubscribe(ctx, key, l)
	}()
	select {
	case <-unsubscribed:
		t.Fatalf("unsubscribe finished while the retried subscribe was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(d.release)
	<-retried
	if err := <-unsubscribed; err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if d.isSubscribed() {
		t.Fatalf("retried subscribe finished after the newer unsubscribe")
	}
	if r.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", r.Pending())
	}
}

func TestPairLocksReleased(t *testing.T) {
	r := newTestRegistry(newFlakyDoer())
	defer r.Close()

	key := url.New("quiver", "10.0.0.1", 0, "com.foo.Svc", nil)
	l := &nopListener{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = r.Subscribe(context.Background(), key, l)
				return
			}
			_ = r.Unsubscribe(context.Background(), key, l)
		}(i)
	}
	wg.Wait()
	r.mu.Lock()
	n := len(r.locks)
	r.mu.Unlock()
	if n != 0 {
		t.Fatalf("locks left = %d", n)
	}
}
