package codec

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/rpc/message"
	"github.com/wangshanqi84-gif/quiver/cores/rpc/serialize"
	"github.com/wangshanqi84-gif/quiver/cores/url"
)

type user struct {
	Name string `json:"name"`
}

func channelURL(serialization string) *url.URL {
	return url.New("quiver", "127.0.0.1", 8002, "com.foo.Foo",
		map[string]string{url.ParamSerialization: serialization})
}

func TestEncodeDecodeRequestExample(t *testing.T) {
	c := NewCodec()
	u := channelURL(serialize.NameJSON)
	req := &message.Request{
		RequestID:      7,
		InterfaceName:  "Foo",
		MethodName:     "bar",
		ParametersDesc: "(I)",
		Arguments:      []interface{}{42},
		Attachments:    map[string]string{"t": "1"},
	}
	data, err := c.Encode(u, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := c.Decode(u, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := msg.(*message.Request)
	if !ok {
		t.Fatalf("decoded %T, want *message.Request", msg)
	}
	if !reflect.DeepEqual(got, req) {
		t.Fatalf("got %+v, want %+v", got, req)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	types := NewTypes()
	types.Register("com.foo.User", reflect.TypeOf(user{}))
	c := NewCodec(WithTypes(types))
	tests := []struct {
		name          string
		serialization string
		req           *message.Request
	}{
		{
			name:          "no arguments no attachments",
			serialization: serialize.NameJSON,
			req:           &message.Request{RequestID: 1, InterfaceName: "a.B", MethodName: "ping"},
		},
		{
			name:          "signature descriptor",
			serialization: serialize.NameJSON,
			req: &message.Request{
				RequestID:      2,
				InterfaceName:  "a.B",
				MethodName:     "save",
				ParametersDesc: "(JLcom/foo/User;[I)",
				Arguments:      []interface{}{int64(9), user{Name: "n"}, []int{1, 2}},
				Attachments:    map[string]string{"b": "2", "a": "1"},
			},
		},
		{
			name:          "name list descriptor",
			serialization: serialize.NameJSON,
			req: &message.Request{
				RequestID:      -3,
				InterfaceName:  "a.B",
				MethodName:     "find",
				ParametersDesc: "string,bool,com.foo.User[]",
				Arguments:      []interface{}{"q", true, []user{{Name: "x"}}},
			},
		},
		{
			name:          "protobuf",
			serialization: serialize.NameProtobuf,
			req: &message.Request{
				RequestID:      4,
				InterfaceName:  "a.B",
				MethodName:     "m",
				ParametersDesc: "string,int32,bytes",
				Arguments:      []interface{}{"s", int32(3), []byte("raw")},
				Attachments:    map[string]string{"k": "v"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := channelURL(tt.serialization)
			data, err := c.Encode(u, tt.req)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			msg, err := c.Decode(u, data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(msg, tt.req) {
				t.Fatalf("got %+v, want %+v", msg, tt.req)
			}
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	c := NewCodec()
	tests := []struct {
		name          string
		serialization string
		resp          *message.Response
	}{
		{name: "value", serialization: serialize.NameJSON, resp: &message.Response{RequestID: 1, ProcessTime: 12, Value: "ok"}},
		{name: "void", serialization: serialize.NameJSON, resp: &message.Response{RequestID: 2, ProcessTime: 3}},
		{
			name:          "exception",
			serialization: serialize.NameJSON,
			resp: &message.Response{RequestID: 3, ProcessTime: 4,
				Exception: &message.Exception{Type: "com.foo.BizException", Message: "bad"}},
		},
		{name: "protobuf value", serialization: serialize.NameProtobuf, resp: &message.Response{RequestID: 5, Value: int64(99)}},
		{
			name:          "protobuf exception",
			serialization: serialize.NameProtobuf,
			resp: &message.Response{RequestID: 6,
				Exception: &message.Exception{Type: "E", Message: "m"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := channelURL(tt.serialization)
			data, err := c.Encode(u, tt.resp)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			msg, err := c.Decode(u, data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := msg.(*message.Response)
			if got.Kind() != tt.resp.Kind() {
				t.Fatalf("kind %s, want %s", got.Kind(), tt.resp.Kind())
			}
			if !reflect.DeepEqual(got, tt.resp) {
				t.Fatalf("got %+v, want %+v", got, tt.resp)
			}
		})
	}
}

func TestFrameLayout(t *testing.T) {
	c := NewCodec()
	data, err := c.Encode(nil, &message.Response{RequestID: 1, ProcessTime: 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0xF0, 0xF0, 0x01, FlagResponseVoid,
		0, 0, 0, 0, 0, 0, 0, 1,
		0, 0, 0, 8,
		0, 0, 0, 0, 0, 0, 0, 5,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("frame\n got %x\nwant %x", data, want)
	}
}

func TestFlagByKind(t *testing.T) {
	c := NewCodec()
	tests := []struct {
		name string
		msg  interface{}
		flag byte
	}{
		{name: "request", msg: &message.Request{InterfaceName: "a"}, flag: FlagRequest},
		{name: "response", msg: &message.Response{Value: 1}, flag: FlagResponse},
		{name: "void", msg: &message.Response{}, flag: FlagResponseVoid},
		{name: "exception", msg: &message.Response{Exception: &message.Exception{Message: "x"}}, flag: FlagResponseException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := c.Encode(nil, tt.msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if data[3] != tt.flag {
				t.Fatalf("flag %#x, want %#x", data[3], tt.flag)
			}
		})
	}
}

func validFrame(t *testing.T) []byte {
	t.Helper()
	data, err := NewCodec().Encode(nil, &message.Request{RequestID: 1, InterfaceName: "a", MethodName: "b"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
		kind   *gErrors.Error
	}{
		{name: "header only", mutate: func(b []byte) []byte { return b[:HeaderLength] }, kind: gErrors.ErrFrameworkDecode},
		{name: "empty", mutate: func(b []byte) []byte { return nil }, kind: gErrors.ErrFrameworkDecode},
		{name: "magic", mutate: func(b []byte) []byte { b[0] = 0xF1; return b }, kind: gErrors.ErrFrameworkDecode},
		{name: "version", mutate: func(b []byte) []byte { b[2] = 0x02; return b }, kind: gErrors.ErrFrameworkDecode},
		{name: "body longer than declared", mutate: func(b []byte) []byte { return append(b, 0) }, kind: gErrors.ErrFrameworkDecode},
		{name: "body shorter than declared", mutate: func(b []byte) []byte { return b[:len(b)-1] }, kind: gErrors.ErrFrameworkDecode},
		{name: "response kind not supported", mutate: func(b []byte) []byte { b[3] = 0x02; return b }, kind: gErrors.ErrFrameworkDecode},
	}
	c := NewCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := c.Decode(nil, tt.mutate(validFrame(t)))
			if err == nil {
				t.Fatalf("expected error, got %+v", msg)
			}
			if msg != nil {
				t.Fatalf("partial message returned: %+v", msg)
			}
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error %v is not %v", err, tt.kind)
			}
		})
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	w := &bodyWriter{}
	_ = w.writeString("a")
	_ = w.writeString("b")
	_ = w.writeString("")
	w.writeInt32(0)
	w.buf = append(w.buf, 0xFF)
	_, err := NewCodec().Decode(nil, writeFrame(FlagRequest, 1, w.buf))
	if !errors.Is(err, gErrors.ErrFrameworkDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeReservedFlagBits(t *testing.T) {
	c := NewCodec()
	data, err := c.Encode(nil, &message.Response{RequestID: 9, Value: "v"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[3] |= 0x80
	msg, err := c.Decode(nil, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.(*message.Response).Value != "v" {
		t.Fatalf("unexpected %+v", msg)
	}
}

func TestDecodeNegativeAttachmentCount(t *testing.T) {
	w := &bodyWriter{}
	_ = w.writeString("a")
	_ = w.writeString("b")
	_ = w.writeString("")
	w.writeInt32(-1)
	msg, err := NewCodec().Decode(nil, writeFrame(FlagRequest, 1, w.buf))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req := msg.(*message.Request); req.Attachments != nil {
		t.Fatalf("expected no attachments, got %v", req.Attachments)
	}
}

func TestClassNotFound(t *testing.T) {
	types := NewTypes()
	types.Register("com.foo.User", reflect.TypeOf(user{}))
	enc := NewCodec(WithTypes(types))
	dec := NewCodec()

	data, err := enc.Encode(nil, &message.Response{RequestID: 1, Value: user{Name: "x"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err = dec.Decode(nil, data); !errors.Is(err, gErrors.ErrClassNotFound) {
		t.Fatalf("expected class not found, got %v", err)
	}

	data, err = enc.Encode(nil, &message.Request{
		RequestID: 2, InterfaceName: "a", MethodName: "b",
		ParametersDesc: "(Lcom/foo/User;)", Arguments: []interface{}{user{}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err = dec.Decode(nil, data); !errors.Is(err, gErrors.ErrClassNotFound) {
		t.Fatalf("expected class not found, got %v", err)
	}
}

func TestEncodeErrors(t *testing.T) {
	c := NewCodec()
	if _, err := c.Encode(nil, "not a message"); !errors.Is(err, gErrors.ErrFrameworkEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
	if _, err := c.Encode(nil, &message.Response{Value: user{}}); !errors.Is(err, gErrors.ErrFrameworkEncode) {
		t.Fatalf("expected encode error for unregistered type, got %v", err)
	}
	if _, err := c.Encode(channelURL("missing"), &message.Request{}); !errors.Is(err, gErrors.ErrFrameworkEncode) {
		t.Fatalf("expected encode error for unknown serialization, got %v", err)
	}
}

func TestEncodeArgumentCount(t *testing.T) {
	tests := []struct {
		name string
		desc string
		args []interface{}
		ok   bool
	}{
		{name: "no params", desc: "", args: nil, ok: true},
		{name: "signature match", desc: "(IJ)", args: []interface{}{1, int64(2)}, ok: true},
		{name: "names match", desc: "string,int", args: []interface{}{"a", 1}, ok: true},
		{name: "missing argument", desc: "(IJ)", args: []interface{}{1}},
		{name: "extra argument", desc: "string", args: []interface{}{"a", "b"}},
		{name: "arguments without descriptor", desc: "", args: []interface{}{1}},
		{name: "bad signature", desc: "(I", args: []interface{}{1}},
	}
	c := NewCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Encode(nil, &message.Request{
				InterfaceName: "a", MethodName: "b",
				ParametersDesc: tt.desc, Arguments: tt.args,
			})
			if tt.ok {
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				return
			}
			if !errors.Is(err, gErrors.ErrFrameworkEncode) {
				t.Fatalf("expected encode error, got %v", err)
			}
		})
	}
}

type failingSerialization struct {
	err error
}

func (f failingSerialization) Serialize(interface{}) ([]byte, error) { return nil, f.err }

func (f failingSerialization) Deserialize([]byte, reflect.Type) (interface{}, error) {
	return nil, f.err
}

func TestSerializerErrorWrapping(t *testing.T) {
	plain := errors.New("boom")
	typed := gErrors.Frameworkf(gErrors.ErrIllegalState, "already typed")
	tests := []struct {
		name     string
		err      error
		wantKind *gErrors.Error
		notKind  *gErrors.Error
	}{
		{name: "plain error wrapped", err: plain, wantKind: gErrors.ErrFrameworkEncode},
		{name: "framework error passed through", err: typed, wantKind: gErrors.ErrIllegalState, notKind: gErrors.ErrFrameworkEncode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec(WithSerializations(func(string) (serialize.Serialization, error) {
				return failingSerialization{err: tt.err}, nil
			}))
			_, err := c.Encode(nil, &message.Request{ParametersDesc: "int", Arguments: []interface{}{1}})
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("error %v is not %v", err, tt.wantKind)
			}
			if tt.notKind != nil && errors.Is(err, tt.notKind) {
				t.Fatalf("error %v must not be re-wrapped", err)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("original error lost: %v", err)
			}
		})
	}
}
