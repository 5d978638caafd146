package consul

import (
	"testing"
	"time"
)

func TestNewConsulClient(t *testing.T) {
	t.Setenv("QVR_CONSUL_HTTP_ADDR", "")
	if _, err := NewConsulClient(" , "); err == nil {
		t.Fatalf("expected error for empty addrs")
	}
	cli, err := NewConsulClient("127.0.0.1:8500/", WaitTime(time.Second), Token("t"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if cli.KV() == nil {
		t.Fatalf("kv client missing")
	}

	t.Setenv("QVR_CONSUL_HTTP_ADDR", "127.0.0.1:8500")
	if _, err := NewConsulClient(""); err != nil {
		t.Fatalf("env addr: %v", err)
	}
}
