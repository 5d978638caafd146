package context

import (
	"context"
)

type (
	callKey       struct{}
	forContextKey struct{}
)

// AsCtx 日志使用的上下文 存在脱离生命周期的上下文时优先使用
func AsCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if c, ok := ctx.Value(forContextKey{}).(context.Context); ok {
		return c
	}
	return ctx
}

// Detach 返回不随ctx取消的上下文 保留日志字段 用于后台重试/通知
func Detach(ctx context.Context) context.Context {
	base := context.Background()
	if ci, ok := FromCallContext(ctx); ok {
		base = NewCallContext(base, ci)
	}
	return context.WithValue(base, forContextKey{}, base)
}

// CallInfo 一次调用或注册中心操作的标识
type CallInfo struct {
	RequestID int64  `json:"requestId,omitempty"`
	Service   string `json:"service,omitempty"`
	Method    string `json:"method,omitempty"`
	Group     string `json:"group,omitempty"`
}

func NewCallContext(ctx context.Context, ci CallInfo) context.Context {
	return context.WithValue(ctx, callKey{}, ci)
}

func FromCallContext(ctx context.Context) (CallInfo, bool) {
	if ctx == nil {
		return CallInfo{}, false
	}
	ci, ok := ctx.Value(callKey{}).(CallInfo)
	return ci, ok
}
