package nacos

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wangshanqi84-gif/quiver/cores/logger"
)

func TestServerConfig(t *testing.T) {
	tests := []struct {
		path    string
		host    string
		port    uint64
		ctxPath string
		wantErr bool
	}{
		{path: "http://127.0.0.1:8848", host: "127.0.0.1", port: 8848, ctxPath: "/nacos"},
		{path: "https://nacos.local:443/custom/", host: "nacos.local", port: 443, ctxPath: "/custom"},
		{path: "127.0.0.1:8848", wantErr: true},
		{path: "http://127.0.0.1", wantErr: true},
		{path: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			sc, err := serverConfig(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", sc)
				}
				return
			}
			if err != nil {
				t.Fatalf("server config: %v", err)
			}
			if sc.IpAddr != tt.host || sc.Port != tt.port || sc.ContextPath != tt.ctxPath {
				t.Fatalf("server config = %+v", sc)
			}
		})
	}
}

func TestClientParamFromEnv(t *testing.T) {
	t.Setenv("QVR_NACOS_SERVER_PATH", "http://10.0.0.1:8848")
	t.Setenv("QVR_NACOS_NAMESPACE", "ns-1")
	t.Setenv("QVR_NACOS_ACCESS", "")
	t.Setenv("QVR_NACOS_SECRET", "")
	t.Setenv("QVR_NACOS_USERNAME", "")
	t.Setenv("QVR_NACOS_PASSWORD", "")

	param, err := clientParam(WithNamespace("explicit"), FromEnv(), WithTimeOut(1000))
	if err != nil {
		t.Fatalf("client param: %v", err)
	}
	cc := param.ClientConfig
	if cc.NamespaceId != "explicit" || cc.TimeoutMs != 1000 || cc.Username != "nacos" {
		t.Fatalf("client config = %+v", cc)
	}
	if param.ServerConfigs[0].IpAddr != "10.0.0.1" {
		t.Fatalf("server configs = %+v", param.ServerConfigs)
	}
}

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: logger.New("nacos", logger.SetOutput(&buf))}
	l.Info("naming ", "ready")
	l.Warnf("retry %d", 2)
	out := buf.String()
	if !strings.Contains(out, "naming ready") || !strings.Contains(out, "retry 2") {
		t.Fatalf("unexpected output %q", out)
	}
}
