package registry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/url"
)

type testListener struct {
	name string
}

func TestHubSharesWatch(t *testing.T) {
	h := NewHub[*testListener](context.Background())
	defer h.Close()

	var started int32
	stopped := make(chan struct{})
	watch := func(ctx context.Context) {
		atomic.AddInt32(&started, 1)
		<-ctx.Done()
		close(stopped)
	}
	key := url.New("quiver", "10.0.0.1", 0, "svc", nil)
	a, b := &testListener{name: "a"}, &testListener{name: "b"}
	h.Add("node", key, a, watch)
	h.Add("node", key, b, watch)

	if subs := h.Subscriptions("node"); len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	h.Remove("node", a)
	select {
	case <-stopped:
		t.Fatalf("watch stopped while a listener remains")
	case <-time.After(20 * time.Millisecond):
	}
	h.Remove("node", b)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("watch not stopped after last listener removed")
	}
	if got := atomic.LoadInt32(&started); got != 1 {
		t.Fatalf("started = %d, want 1", got)
	}
	if subs := h.Subscriptions("node"); subs != nil {
		t.Fatalf("expected no subscriptions, got %v", subs)
	}
	h.Remove("missing", a)
}

func TestHubClose(t *testing.T) {
	h := NewHub[*testListener](context.Background())
	done := make(chan struct{})
	h.Add("node", url.New("quiver", "h", 0, "p", nil), &testListener{}, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	h.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("watch not stopped by Close")
	}
}
