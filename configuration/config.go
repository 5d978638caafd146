package configuration

import (
	"encoding/json"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FormatJson = "json"
	FormatYaml = "yaml"
	FormatXml  = "xml"
)

type IConfig interface {
	GetConfig(name string, v interface{}) error
	PublishConfig(name string, v interface{}) error
}

// OnChange 配置变更回调 data为变更后的原始内容
type OnChange func(name string, data []byte)

// NormalizeFormat 未知格式按json处理
func NormalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case FormatYaml, "yml":
		return FormatYaml
	case FormatXml:
		return FormatXml
	default:
		return FormatJson
	}
}

func Unmarshal(format string, data []byte, v interface{}) error {
	var err error
	switch NormalizeFormat(format) {
	case FormatYaml:
		err = yaml.Unmarshal(data, v)
	case FormatXml:
		err = xml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	return errors.Wrapf(err, "unmarshal %s config", format)
}

func Marshal(format string, v interface{}) ([]byte, error) {
	var bs []byte
	var err error
	switch NormalizeFormat(format) {
	case FormatYaml:
		bs, err = yaml.Marshal(v)
	case FormatXml:
		bs, err = xml.Marshal(v)
	default:
		bs, err = json.Marshal(v)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s config", format)
	}
	return bs, nil
}
