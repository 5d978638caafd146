// Package codec rpc帧编解码
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sort"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/metric/prom"
	"github.com/wangshanqi84-gif/quiver/cores/rpc/message"
	"github.com/wangshanqi84-gif/quiver/cores/rpc/serialize"
	"github.com/wangshanqi84-gif/quiver/cores/url"
)

var exceptionType = reflect.TypeOf(&message.Exception{})

type Option func(c *Codec)

// WithTypes 类型表
func WithTypes(types TypeResolver) Option {
	return func(c *Codec) {
		c.types = types
	}
}

// WithSerializations 序列化查找
func WithSerializations(finder serialize.Finder) Option {
	return func(c *Codec) {
		c.finder = finder
	}
}

// Codec 名称/描述/附加信息使用固定格式 参数与结果交给序列化实现
type Codec struct {
	types  TypeResolver
	finder serialize.Finder
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		types:  NewTypes(),
		finder: serialize.Get,
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}

func (c *Codec) serialization(u *url.URL) (serialize.Serialization, error) {
	name := url.DefaultSerialization
	if u != nil {
		name = u.Serialization()
	}
	return c.finder(name)
}

// Encode 编码Request或Response为完整帧
func (c *Codec) Encode(u *url.URL, msg interface{}) ([]byte, error) {
	var (
		data       []byte
		err        error
		isResponse bool
	)
	switch m := msg.(type) {
	case *message.Request:
		data, err = c.encodeRequest(u, m)
	case *message.Response:
		isResponse = true
		data, err = c.encodeResponse(u, m)
	default:
		prom.CodecError(prom.OpEncode, "type")
		return nil, gErrors.Frameworkf(gErrors.ErrFrameworkEncode, "encode error: message type not support, %T", msg)
	}
	if err != nil {
		prom.CodecError(prom.OpEncode, "body")
		if gErrors.IsFramework(err) {
			return nil, err
		}
		return nil, gErrors.Framework(gErrors.ErrFrameworkEncode, fmt.Sprintf("encode error: isResponse=%t", isResponse), err)
	}
	prom.CodecFrame(prom.OpEncode, kindLabel(data[3]))
	return data, nil
}

func (c *Codec) encodeRequest(u *url.URL, req *message.Request) ([]byte, error) {
	s, err := c.serialization(u)
	if err != nil {
		return nil, err
	}
	names, err := paramNames(req.ParametersDesc)
	if err != nil {
		return nil, gErrors.Framework(gErrors.ErrFrameworkEncode, "encode error: bad parameter descriptor", err)
	}
	if len(names) != len(req.Arguments) {
		return nil, gErrors.Frameworkf(gErrors.ErrFrameworkEncode, "encode error: %d arguments for descriptor %q", len(req.Arguments), req.ParametersDesc)
	}
	w := &bodyWriter{}
	for _, str := range []string{req.InterfaceName, req.MethodName, req.ParametersDesc} {
		if err = w.writeString(str); err != nil {
			return nil, err
		}
	}
	for _, arg := range req.Arguments {
		bs, err := s.Serialize(arg)
		if err != nil {
			return nil, err
		}
		if err = w.writeBytes(bs); err != nil {
			return nil, err
		}
	}
	w.writeInt32(int32(len(req.Attachments)))
	keys := make([]string, 0, len(req.Attachments))
	for k := range req.Attachments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err = w.writeString(k); err != nil {
			return nil, err
		}
		if err = w.writeString(req.Attachments[k]); err != nil {
			return nil, err
		}
	}
	return writeFrame(FlagRequest, req.RequestID, w.buf), nil
}

func (c *Codec) encodeResponse(u *url.URL, resp *message.Response) ([]byte, error) {
	s, err := c.serialization(u)
	if err != nil {
		return nil, err
	}
	w := &bodyWriter{}
	w.writeInt64(resp.ProcessTime)

	var (
		flag      byte
		className string
		payload   interface{}
	)
	switch resp.Kind() {
	case message.KindException:
		flag = FlagResponseException
		className = resp.Exception.Type
		payload = resp.Exception
	case message.KindVoid:
		flag = FlagResponseVoid
	default:
		flag = FlagResponse
		name, ok := c.types.TypeName(reflect.TypeOf(resp.Value))
		if !ok {
			return nil, gErrors.Frameworkf(gErrors.ErrFrameworkEncode, "encode error: result type %T not registered", resp.Value)
		}
		className = name
		payload = resp.Value
	}
	if payload != nil {
		if err = w.writeString(className); err != nil {
			return nil, err
		}
		bs, err := s.Serialize(payload)
		if err != nil {
			return nil, err
		}
		if err = w.writeBytes(bs); err != nil {
			return nil, err
		}
	}
	return writeFrame(flag, resp.RequestID, w.buf), nil
}

// Decode 解析完整帧 返回*message.Request或*message.Response
func (c *Codec) Decode(u *url.URL, data []byte) (interface{}, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	dataType := h.flag & FlagMask
	isResponse := dataType != FlagRequest
	body := data[HeaderLength:]

	s, err := c.serialization(u)
	if err != nil {
		prom.CodecError(prom.OpDecode, "serialization")
		return nil, gErrors.Framework(gErrors.ErrFrameworkDecode, fmt.Sprintf("decode error: isResponse=%t", isResponse), err)
	}

	var msg interface{}
	if isResponse {
		msg, err = c.decodeResponse(body, dataType, h.requestID, s)
	} else {
		msg, err = c.decodeRequest(body, h.requestID, s)
	}
	if err != nil {
		kind := "request"
		if isResponse {
			kind = "response"
		}
		switch {
		case errors.Is(err, gErrors.ErrClassNotFound):
			prom.CodecError(prom.OpDecode, "class_not_found")
			return nil, gErrors.Framework(gErrors.ErrClassNotFound, fmt.Sprintf("decode %s error: class not found", kind), err)
		case gErrors.IsFramework(err):
			prom.CodecError(prom.OpDecode, "kind")
			return nil, err
		default:
			prom.CodecError(prom.OpDecode, "body")
			return nil, gErrors.Framework(gErrors.ErrFrameworkDecode, fmt.Sprintf("decode error: isResponse=%t", isResponse), err)
		}
	}
	prom.CodecFrame(prom.OpDecode, kindLabel(h.flag))
	return msg, nil
}

// 校验顺序: 长度 magic version body长度
func readHeader(data []byte) (header, error) {
	if len(data) <= HeaderLength {
		prom.CodecError(prom.OpDecode, "length")
		return header{}, gErrors.Frameworkf(gErrors.ErrFrameworkDecode, "decode error: format problem")
	}
	if binary.BigEndian.Uint16(data[0:2]) != Magic {
		prom.CodecError(prom.OpDecode, "magic")
		return header{}, gErrors.Frameworkf(gErrors.ErrFrameworkDecode, "decode error: magic error")
	}
	if data[2] != Version {
		prom.CodecError(prom.OpDecode, "version")
		return header{}, gErrors.Frameworkf(gErrors.ErrFrameworkDecode, "decode error: version error")
	}
	h := header{
		flag:       data[3],
		requestID:  int64(binary.BigEndian.Uint64(data[4:12])),
		bodyLength: int32(binary.BigEndian.Uint32(data[12:16])),
	}
	if int64(HeaderLength)+int64(h.bodyLength) != int64(len(data)) {
		prom.CodecError(prom.OpDecode, "body_length")
		return header{}, gErrors.Frameworkf(gErrors.ErrFrameworkDecode, "decode error: content length error")
	}
	return h, nil
}

func (c *Codec) decodeRequest(body []byte, requestID int64, s serialize.Serialization) (*message.Request, error) {
	r := &bodyReader{buf: body}
	req := &message.Request{RequestID: requestID}
	var err error
	if req.InterfaceName, err = r.readString(); err != nil {
		return nil, err
	}
	if req.MethodName, err = r.readString(); err != nil {
		return nil, err
	}
	if req.ParametersDesc, err = r.readString(); err != nil {
		return nil, err
	}
	types, err := c.types.ResolveTypes(req.ParametersDesc)
	if err != nil {
		return nil, err
	}
	if len(types) > 0 {
		req.Arguments = make([]interface{}, 0, len(types))
	}
	for _, typ := range types {
		bs, err := r.readBytes()
		if err != nil {
			return nil, err
		}
		arg, err := s.Deserialize(bs, typ)
		if err != nil {
			return nil, err
		}
		req.Arguments = append(req.Arguments, arg)
	}
	size, err := r.readInt32()
	if err != nil {
		return nil, err
	}
	if size > 0 {
		req.Attachments = make(map[string]string, size)
		for i := int32(0); i < size; i++ {
			k, err := r.readString()
			if err != nil {
				return nil, err
			}
			v, err := r.readString()
			if err != nil {
				return nil, err
			}
			req.Attachments[k] = v
		}
	}
	if err = r.done(); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *Codec) decodeResponse(body []byte, dataType byte, requestID int64, s serialize.Serialization) (*message.Response, error) {
	switch dataType {
	case FlagResponse, FlagResponseVoid, FlagResponseException:
	default:
		return nil, gErrors.Frameworkf(gErrors.ErrFrameworkDecode, "decode error: response dataType not support %d", dataType)
	}
	r := &bodyReader{buf: body}
	processTime, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	resp := &message.Response{
		RequestID:   requestID,
		ProcessTime: processTime,
	}
	if dataType == FlagResponseVoid {
		return resp, r.done()
	}
	className, err := r.readString()
	if err != nil {
		return nil, err
	}
	typ := exceptionType
	if dataType == FlagResponse {
		if typ, err = c.types.ResolveType(className); err != nil {
			return nil, err
		}
	}
	bs, err := r.readBytes()
	if err != nil {
		return nil, err
	}
	result, err := s.Deserialize(bs, typ)
	if err != nil {
		return nil, err
	}
	if err = r.done(); err != nil {
		return nil, err
	}
	if dataType == FlagResponse {
		resp.Value = result
		return resp, nil
	}
	e, ok := result.(*message.Exception)
	if !ok || e == nil {
		return nil, fmt.Errorf("exception payload decoded as %T", result)
	}
	if e.Type == "" {
		e.Type = className
	}
	resp.Exception = e
	return resp, nil
}

func kindLabel(flag byte) string {
	switch flag & FlagMask {
	case FlagRequest:
		return "request"
	case FlagResponse:
		return "response"
	case FlagResponseVoid:
		return "void"
	case FlagResponseException:
		return "exception"
	default:
		return "unknown"
	}
}
