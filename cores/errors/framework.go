package errors

import (
	"errors"
	"fmt"
)

// 框架错误分类
var (
	ErrFrameworkEncode = New(10001, "framework encode error")
	ErrFrameworkDecode = New(10002, "framework decode error")
	ErrClassNotFound   = New(10003, "class not found")
	ErrCommandParse    = New(10004, "command parse error")
	ErrBackend         = New(10005, "registry backend error")
	ErrIllegalState    = New(10006, "illegal state")
)

// FrameworkError 带分类的框架错误 errors.Is(err, kind)成立
type FrameworkError struct {
	kind  *Error
	msg   string
	cause error
}

func (e *FrameworkError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.kind.message, e.msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.kind.message, e.msg, e.cause)
}

func (e *FrameworkError) Kind() *Error { return e.kind }

func (e *FrameworkError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Framework 创建框架错误
func Framework(kind *Error, msg string, cause error) error {
	return &FrameworkError{
		kind:  kind,
		msg:   msg,
		cause: cause,
	}
}

// Frameworkf 格式化创建框架错误
func Frameworkf(kind *Error, format string, args ...interface{}) error {
	return &FrameworkError{
		kind: kind,
		msg:  fmt.Sprintf(format, args...),
	}
}

// IsFramework 是否已经是框架错误
func IsFramework(err error) bool {
	var fe *FrameworkError
	return errors.As(err, &fe)
}
