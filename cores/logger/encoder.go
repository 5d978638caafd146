package logger

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	gCtx "github.com/wangshanqi84-gif/quiver/cores/context"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
)

type CustomJsonEncoder func(context.Context) (string, string)

type LevelEncoder func(Level) string
type TimeEncoder func(time.Time) string
type CallerEncoder func() string

func defaultLevelEncoder(l Level) string {
	if l.isNoneLevel() {
		return ""
	}
	return "[" + l.String() + "]"
}

func defaultTimeEncoder(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

func defaultCallEncoder() string {
	_, file, line, _ := runtime.Caller(4)

	ss := strings.Split(file, "/")
	if len(ss) > PathDeep {
		ss = ss[len(ss)-PathDeep:]
		file = "/" + strings.Join(ss, "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func traceEncoder(ctx context.Context) string {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	if sc, ok := span.Context().(jaeger.SpanContext); ok {
		return sc.TraceID().String()
	}
	return ""
}

// callFields 调用标识 按固定顺序输出
func callFields(ctx context.Context) [][2]string {
	ci, ok := gCtx.FromCallContext(ctx)
	if !ok {
		return nil
	}
	var fields [][2]string
	if ci.Service != "" {
		fields = append(fields, [2]string{"service", ci.Service})
	}
	if ci.Method != "" {
		fields = append(fields, [2]string{"method", ci.Method})
	}
	if ci.Group != "" {
		fields = append(fields, [2]string{"group", ci.Group})
	}
	if ci.RequestID != 0 {
		fields = append(fields, [2]string{"request_id", strconv.FormatInt(ci.RequestID, 10)})
	}
	return fields
}
