package etcd

import (
	"context"
	"testing"
	"time"

	"github.com/wangshanqi84-gif/quiver/configuration"

	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestKey(t *testing.T) {
	t.Setenv("QVR_ENV_SERVICE", "Online")
	cc := NewConfigClient(context.Background(), nil, "yaml", Prefix("/svc/"))
	if got := cc.key("/registry.yaml"); got != "/svc/online/registry.yaml" {
		t.Fatalf("key = %s", got)
	}
	cc = NewConfigClient(context.Background(), nil, "")
	t.Setenv("QVR_ENV_SERVICE", "")
	if got := cc.key("registry"); got != "/quiver/config/testing/registry" {
		t.Fatalf("key = %s", got)
	}
	if cc.format != configuration.FormatJson {
		t.Fatalf("format = %s", cc.format)
	}
}

func TestUnreachable(t *testing.T) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"127.0.0.1:1"},
		DialTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Skipf("etcd client: %v", err)
	}
	defer cli.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	cc := NewConfigClient(ctx, cli, "json")
	var v map[string]string
	if err := cc.GetConfig("registry", &v); err == nil {
		t.Fatalf("expected error from unreachable etcd")
	}
}
