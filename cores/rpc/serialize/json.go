package serialize

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

type JSON struct{}

func (JSON) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Deserialize(data []byte, typ reflect.Type) (interface{}, error) {
	if typ == nil {
		return nil, errors.New("json: target type is nil")
	}
	ptr := reflect.New(typ)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "json: decode %s", typ)
	}
	return ptr.Elem().Interface(), nil
}
