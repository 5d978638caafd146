package etcd

import (
	"context"
	"errors"
	"testing"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"

	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestOptions(t *testing.T) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"127.0.0.1:1"},
		DialTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Skipf("etcd client unavailable: %v", err)
	}
	b := New(client, Root("/test"), TTL(time.Minute), MaxRetry(1))
	defer b.Close()

	if b.opts.root != "/test" || b.opts.ttl != time.Minute || b.opts.maxRetry != 1 {
		t.Fatalf("options not applied: %+v", b.opts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = b.DiscoverService(ctx, url.New("quiver", "h", 0, "com.foo.Svc", nil))
	if !errors.Is(err, gErrors.ErrBackend) {
		t.Fatalf("unreachable etcd must report a backend error, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"127.0.0.1:1"},
		DialTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Skipf("etcd client unavailable: %v", err)
	}
	b := New(client)
	defer b.Close()
	if b.opts.root != registry.DefaultRoot || b.opts.ttl != _defaultLeaseTTL || b.opts.maxRetry != _defaultRetryTimes {
		t.Fatalf("unexpected defaults: %+v", b.opts)
	}
}
