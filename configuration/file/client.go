package file

import (
	"context"
	"os"

	"github.com/wangshanqi84-gif/quiver/configuration"

	"github.com/pkg/errors"
)

// ConfigClient 本地文件配置 name为文件路径
type ConfigClient struct {
	ctx    context.Context
	format string
}

func NewConfigClient(ctx context.Context, format string) *ConfigClient {
	return &ConfigClient{
		ctx:    ctx,
		format: configuration.NormalizeFormat(format),
	}
}

func (cc *ConfigClient) GetConfig(name string, v interface{}) error {
	bs, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", name)
	}
	if len(bs) == 0 {
		return errors.Errorf("config file %s is empty", name)
	}
	return configuration.Unmarshal(cc.format, bs, v)
}

// PublishConfig 写回配置文件
func (cc *ConfigClient) PublishConfig(name string, v interface{}) error {
	bs, err := configuration.Marshal(cc.format, v)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(name, bs, 0o644), "write config file %s", name)
}
