// Package serialize 可插拔的对象序列化 按名称查找
package serialize

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Serialization 序列化约定 codec只依赖该接口
type Serialization interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, typ reflect.Type) (interface{}, error)
}

// Finder 按名称查找序列化实现
type Finder func(name string) (Serialization, error)

const (
	NameJSON     = "json"
	NameProtobuf = "protobuf"
)

var (
	mu             sync.RWMutex
	serializations = map[string]Serialization{
		NameJSON:     JSON{},
		NameProtobuf: Protobuf{},
	}
)

// Register 注册序列化实现 同名覆盖
func Register(name string, s Serialization) {
	mu.Lock()
	defer mu.Unlock()
	serializations[name] = s
}

// Get 获取序列化实现
func Get(name string) (Serialization, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, has := serializations[name]
	if !has {
		return nil, errors.Errorf("serialization %q not registered", name)
	}
	return s, nil
}
