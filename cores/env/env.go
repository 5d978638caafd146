package env

import (
	"os"
	"strings"
)

const _defaultRunEnv = "testing"

func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault 未设置时返回默认值
func GetEnvDefault(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetRunEnv() string {
	return strings.ToLower(GetEnvDefault(QvrEnvService, _defaultRunEnv))
}

// GetList 逗号分隔的列表
func GetList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func GetNacosEnv() (string, string, string, string, string) {
	return os.Getenv(QvrNacosServerPath), os.Getenv(QvrNacosAccess),
		os.Getenv(QvrNacosSecret), os.Getenv(QvrNacosUsername), os.Getenv(QvrNacosPassword)
}

func GetEtcdEnv() ([]string, string, string, string) {
	return GetList(QvrEtcdEndpoints), os.Getenv(QvrEtcdUsername),
		os.Getenv(QvrEtcdPassword), os.Getenv(QvrEtcdDialTimeout)
}
