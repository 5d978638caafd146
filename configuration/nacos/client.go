package nacos

import (
	"context"

	"github.com/wangshanqi84-gif/quiver/configuration"
	"github.com/wangshanqi84-gif/quiver/cores/env"

	"github.com/nacos-group/nacos-sdk-go/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/vo"
	"github.com/pkg/errors"
)

type Option func(*ConfigClient)

// Group 配置分组 默认为当前运行环境
func Group(group string) Option {
	return func(cc *ConfigClient) {
		cc.group = group
	}
}

func Watch(fn configuration.OnChange) Option {
	return func(cc *ConfigClient) {
		cc.onChange = fn
	}
}

// ConfigClient nacos配置中心 dataId为name
type ConfigClient struct {
	ctx      context.Context
	cli      config_client.IConfigClient
	format   string
	group    string
	onChange configuration.OnChange
}

func NewConfigClient(ctx context.Context, cli config_client.IConfigClient, format string, opts ...Option) *ConfigClient {
	cc := &ConfigClient{
		ctx:    ctx,
		cli:    cli,
		format: configuration.NormalizeFormat(format),
		group:  env.GetRunEnv(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cc)
		}
	}
	return cc
}

func configType(format string) vo.ConfigType {
	switch format {
	case configuration.FormatYaml:
		return vo.YAML
	case configuration.FormatXml:
		return vo.XML
	default:
		return vo.JSON
	}
}

func (cc *ConfigClient) GetConfig(name string, v interface{}) error {
	param := vo.ConfigParam{
		DataId: name,
		Group:  cc.group,
		Type:   configType(cc.format),
	}
	data, err := cc.cli.GetConfig(param)
	if err != nil {
		return errors.Wrapf(err, "nacos get config %s/%s", cc.group, name)
	}
	if data == "" {
		return errors.Errorf("config %s/%s does not exist", cc.group, name)
	}
	if err = configuration.Unmarshal(cc.format, []byte(data), v); err != nil {
		return err
	}
	if cc.onChange == nil {
		return nil
	}
	param.OnChange = func(_, _, dataId, data string) {
		cc.onChange(dataId, []byte(data))
	}
	if err = cc.cli.ListenConfig(param); err != nil {
		return errors.Wrapf(err, "nacos listen config %s/%s", cc.group, name)
	}
	go func() {
		<-cc.ctx.Done()
		_ = cc.cli.CancelListenConfig(vo.ConfigParam{DataId: name, Group: cc.group})
	}()
	return nil
}

func (cc *ConfigClient) PublishConfig(name string, v interface{}) error {
	bs, err := configuration.Marshal(cc.format, v)
	if err != nil {
		return err
	}
	_, err = cc.cli.PublishConfig(vo.ConfigParam{
		DataId:  name,
		Group:   cc.group,
		Type:    configType(cc.format),
		Content: string(bs),
	})
	return errors.Wrapf(err, "nacos publish config %s/%s", cc.group, name)
}
