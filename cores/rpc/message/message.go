// Package message 编解码使用的请求/响应对象
package message

import (
	"fmt"
	"reflect"
)

// Request rpc请求
type Request struct {
	RequestID      int64
	InterfaceName  string
	MethodName     string
	ParametersDesc string // 参数类型描述 例如 "(I)" 或 "string,int"
	Arguments      []interface{}
	Attachments    map[string]string
}

func (r *Request) String() string {
	return fmt.Sprintf("request{id=%d, %s.%s(%s)}", r.RequestID, r.InterfaceName, r.MethodName, r.ParametersDesc)
}

// SetAttachment 设置附加信息
func (r *Request) SetAttachment(key string, value string) {
	if r.Attachments == nil {
		r.Attachments = make(map[string]string)
	}
	r.Attachments[key] = value
}

type ResultKind int8

const (
	KindValue ResultKind = iota
	KindVoid
	KindException
)

func (k ResultKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindVoid:
		return "void"
	case KindException:
		return "exception"
	default:
		return fmt.Sprintf("ResultKind(%d)", k)
	}
}

// Response rpc响应 Value/Exception至多一个有效 都为空表示void
type Response struct {
	RequestID   int64
	ProcessTime int64 // ms
	Value       interface{}
	Exception   *Exception
}

func (r *Response) Kind() ResultKind {
	if r.Exception != nil {
		return KindException
	}
	if r.Value == nil {
		return KindVoid
	}
	return KindValue
}

func (r *Response) String() string {
	return fmt.Sprintf("response{id=%d, kind=%s, processTime=%d}", r.RequestID, r.Kind(), r.ProcessTime)
}

// Exception 远端异常 保留原始类型名
type Exception struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Exception) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// NewException 由error构造远端异常
func NewException(err error) *Exception {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Exception); ok {
		return e
	}
	return &Exception{
		Type:    reflect.TypeOf(err).String(),
		Message: err.Error(),
	}
}
