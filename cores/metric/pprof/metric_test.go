package pprof

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wangshanqi84-gif/quiver/cores/metric/prom"
)

func TestHandler(t *testing.T) {
	prom.RegistryOp("subscribe", prom.ResultOK)
	tests := []struct {
		name  string
		pprof bool
		path  string
		code  int
	}{
		{name: "metrics", path: "/metrics", code: http.StatusOK},
		{name: "pprof closed", path: "/debug/pprof/", code: http.StatusNotFound},
		{name: "pprof open", pprof: true, path: "/debug/pprof/", code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(SetPprof(tt.pprof)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("code = %d", rec.Code)
			}
		})
	}
}

func TestStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := New().Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "quiver_registry_ops_total") && !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("unexpected metrics body")
	}
}
