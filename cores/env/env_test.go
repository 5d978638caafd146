package env

import "testing"

func TestGetList(t *testing.T) {
	t.Setenv(QvrEtcdEndpoints, " 10.0.0.1:2379, ,10.0.0.2:2379 ")
	eps, _, _, _ := GetEtcdEnv()
	if len(eps) != 2 || eps[0] != "10.0.0.1:2379" || eps[1] != "10.0.0.2:2379" {
		t.Fatalf("unexpected endpoints %v", eps)
	}
	t.Setenv(QvrRedisAddr, "")
	if got := GetList(QvrRedisAddr); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestGetRunEnv(t *testing.T) {
	t.Setenv(QvrEnvService, "")
	if got := GetRunEnv(); got != "testing" {
		t.Fatalf("default run env = %s", got)
	}
	t.Setenv(QvrEnvService, "ONLINE")
	if got := GetRunEnv(); got != "online" {
		t.Fatalf("run env = %s", got)
	}
}
