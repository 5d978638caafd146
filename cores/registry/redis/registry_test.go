package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	qRedis "github.com/wangshanqi84-gif/quiver/redis"
)

func TestScores(t *testing.T) {
	now := time.Unix(1700000000, 0)
	if got := expireScore(now, 30*time.Second); got != 1700000030000 {
		t.Fatalf("expire score = %v", got)
	}
	if got := nowScore(now); got != "1700000000000" {
		t.Fatalf("now score = %s", got)
	}
}

func TestEqualStrings(t *testing.T) {
	tests := []struct {
		a, b []string
		want bool
	}{
		{nil, []string{}, true},
		{[]string{"a"}, []string{"a"}, true},
		{[]string{"a"}, []string{"b"}, false},
		{[]string{"a"}, []string{"a", "b"}, false},
	}
	for _, tt := range tests {
		if got := equalStrings(tt.a, tt.b); got != tt.want {
			t.Fatalf("equalStrings(%v, %v) = %v", tt.a, tt.b, got)
		}
	}
}

func TestUnreachable(t *testing.T) {
	client, err := qRedis.NewClient(qRedis.Addrs([]string{"127.0.0.1:1"}), qRedis.Retry(-1))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	b := New(client, TTL(time.Second))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err = b.DiscoverService(ctx, url.New("quiver", "h", 0, "com.foo.Svc", nil))
	if !errors.Is(err, gErrors.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
