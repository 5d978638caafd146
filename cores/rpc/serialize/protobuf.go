package serialize

import (
	"reflect"

	"github.com/wangshanqi84-gif/quiver/cores/rpc/message"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()
	exceptionType    = reflect.TypeOf(&message.Exception{})
	bytesType        = reflect.TypeOf([]byte(nil))
)

// Protobuf proto.Message直接编码 基础类型使用wrapperspb 异常使用structpb
type Protobuf struct{}

func (Protobuf) Serialize(v interface{}) ([]byte, error) {
	var m proto.Message
	switch val := v.(type) {
	case proto.Message:
		m = val
	case *message.Exception:
		s, err := structpb.NewStruct(map[string]interface{}{
			"type":    val.Type,
			"message": val.Message,
		})
		if err != nil {
			return nil, err
		}
		m = s
	case string:
		m = wrapperspb.String(val)
	case bool:
		m = wrapperspb.Bool(val)
	case int:
		m = wrapperspb.Int64(int64(val))
	case int32:
		m = wrapperspb.Int32(val)
	case int64:
		m = wrapperspb.Int64(val)
	case float32:
		m = wrapperspb.Float(val)
	case float64:
		m = wrapperspb.Double(val)
	case []byte:
		m = wrapperspb.Bytes(val)
	default:
		return nil, errors.Errorf("protobuf: type %T not supported", v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Deserialize(data []byte, typ reflect.Type) (interface{}, error) {
	if typ == nil {
		return nil, errors.New("protobuf: target type is nil")
	}
	if typ == exceptionType {
		s := &structpb.Struct{}
		if err := proto.Unmarshal(data, s); err != nil {
			return nil, errors.Wrap(err, "protobuf: decode exception")
		}
		fields := s.GetFields()
		return &message.Exception{
			Type:    fields["type"].GetStringValue(),
			Message: fields["message"].GetStringValue(),
		}, nil
	}
	if typ.Kind() == reflect.Ptr && typ.Implements(protoMessageType) {
		m := reflect.New(typ.Elem()).Interface().(proto.Message)
		if err := proto.Unmarshal(data, m); err != nil {
			return nil, errors.Wrapf(err, "protobuf: decode %s", typ)
		}
		return m, nil
	}
	var (
		w   proto.Message
		get func() interface{}
	)
	switch typ.Kind() {
	case reflect.String:
		v := &wrapperspb.StringValue{}
		w, get = v, func() interface{} { return v.GetValue() }
	case reflect.Bool:
		v := &wrapperspb.BoolValue{}
		w, get = v, func() interface{} { return v.GetValue() }
	case reflect.Int32:
		v := &wrapperspb.Int32Value{}
		w, get = v, func() interface{} { return v.GetValue() }
	case reflect.Int, reflect.Int64:
		v := &wrapperspb.Int64Value{}
		w, get = v, func() interface{} { return v.GetValue() }
	case reflect.Float32:
		v := &wrapperspb.FloatValue{}
		w, get = v, func() interface{} { return v.GetValue() }
	case reflect.Float64:
		v := &wrapperspb.DoubleValue{}
		w, get = v, func() interface{} { return v.GetValue() }
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.Uint8 {
			return nil, errors.Errorf("protobuf: type %s not supported", typ)
		}
		v := &wrapperspb.BytesValue{}
		w, get = v, func() interface{} { return v.GetValue() }
	default:
		return nil, errors.Errorf("protobuf: type %s not supported", typ)
	}
	if err := proto.Unmarshal(data, w); err != nil {
		return nil, errors.Wrapf(err, "protobuf: decode %s", typ)
	}
	return reflect.ValueOf(get()).Convert(typ).Interface(), nil
}
