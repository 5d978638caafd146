package serialize

import (
	"reflect"
	"testing"

	"github.com/wangshanqi84-gif/quiver/cores/rpc/message"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestGet(t *testing.T) {
	if _, err := Get(NameJSON); err != nil {
		t.Fatalf("json not registered: %v", err)
	}
	if _, err := Get(NameProtobuf); err != nil {
		t.Fatalf("protobuf not registered: %v", err)
	}
	if _, err := Get("hessian2"); err == nil {
		t.Fatalf("expected error for unknown serialization")
	}
	Register("hessian2", JSON{})
	if _, err := Get("hessian2"); err != nil {
		t.Fatalf("registered serialization not found: %v", err)
	}
}

func TestSerializations(t *testing.T) {
	tests := []struct {
		name  string
		s     Serialization
		value interface{}
	}{
		{name: "json int", s: JSON{}, value: 42},
		{name: "json string", s: JSON{}, value: "hello"},
		{name: "json struct", s: JSON{}, value: user{Name: "a", Age: 3}},
		{name: "json pointer", s: JSON{}, value: &user{Name: "b"}},
		{name: "json exception", s: JSON{}, value: &message.Exception{Type: "E", Message: "m"}},
		{name: "protobuf int", s: Protobuf{}, value: 42},
		{name: "protobuf int32", s: Protobuf{}, value: int32(7)},
		{name: "protobuf string", s: Protobuf{}, value: "hello"},
		{name: "protobuf bool", s: Protobuf{}, value: true},
		{name: "protobuf double", s: Protobuf{}, value: 1.5},
		{name: "protobuf bytes", s: Protobuf{}, value: []byte("raw")},
		{name: "protobuf exception", s: Protobuf{}, value: &message.Exception{Type: "E", Message: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := tt.s.Serialize(tt.value)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			got, err := tt.s.Deserialize(bs, reflect.TypeOf(tt.value))
			if err != nil {
				t.Fatalf("deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Fatalf("got %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestProtobufMessage(t *testing.T) {
	in := wrapperspb.String("x")
	bs, err := Protobuf{}.Serialize(in)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := Protobuf{}.Deserialize(bs, reflect.TypeOf(in))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !proto.Equal(out.(proto.Message), in) {
		t.Fatalf("got %v", out)
	}
}

func TestProtobufUnsupported(t *testing.T) {
	if _, err := (Protobuf{}).Serialize(user{}); err == nil {
		t.Fatalf("expected error for plain struct")
	}
	if _, err := (Protobuf{}).Deserialize(nil, reflect.TypeOf(user{})); err == nil {
		t.Fatalf("expected error for plain struct")
	}
}
