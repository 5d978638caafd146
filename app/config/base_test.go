package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wangshanqi84-gif/quiver/cores/url"
)

func TestRegistryConfigURL(t *testing.T) {
	tests := []struct {
		name  string
		cfg   RegistryConfig
		host  string
		port  int
		path  string
		retry int
		group string
	}{
		{name: "defaults", cfg: RegistryConfig{Backend: "memory"}, path: "/quiver", retry: url.DefaultRetryPeriod, group: url.DefaultGroup},
		{name: "etcd", cfg: RegistryConfig{Backend: "etcd", Address: []string{"10.0.0.1:2379", "10.0.0.2:2379"}, Root: "svc/", Group: "g1", RetryPeriod: 500},
			host: "10.0.0.1", port: 2379, path: "/svc", retry: 500, group: "g1"},
		{name: "host only", cfg: RegistryConfig{Backend: "consul", Address: []string{"consul.local"}}, host: "consul.local", path: "/quiver", retry: url.DefaultRetryPeriod, group: url.DefaultGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.cfg.URL()
			if u.Protocol != tt.cfg.Backend || u.Host != tt.host || u.Port != tt.port || u.Path != tt.path {
				t.Fatalf("url = %s", u.String())
			}
			if got := u.IntParameter(url.ParamRetryPeriod, url.DefaultRetryPeriod); got != tt.retry {
				t.Fatalf("retry = %d", got)
			}
			if u.Group() != tt.group {
				t.Fatalf("group = %s", u.Group())
			}
		})
	}
}

func TestTTLDuration(t *testing.T) {
	tests := []struct {
		ttl  string
		want time.Duration
	}{
		{"", 0},
		{"15s", 15 * time.Second},
		{"bad", 0},
		{"-1s", 0},
	}
	for _, tt := range tests {
		c := &RegistryConfig{TTL: tt.ttl}
		if got := c.TTLDuration(); got != tt.want {
			t.Fatalf("ttl %q = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestInitializeFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "quiver.yaml")
	content := "log:\n  level: warn\nregistry:\n  backend: memory\n  group: g1\ncodec:\n  serialization: protobuf\n"
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QVR_CONFIG_SOURCE", "")
	t.Setenv("QVR_CONFIG_FORMAT", "")

	var cfg ServiceConfig
	if _, err := Initialize(context.Background(), "", &cfg, WithPath(name)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Registry.Backend != "memory" || cfg.Codec.Serialization != "protobuf" {
		t.Fatalf("config = %+v", cfg)
	}

	t.Setenv("QVR_CONFIG_SOURCE", "zookeeper")
	if _, err := Initialize(context.Background(), name, &cfg); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}
