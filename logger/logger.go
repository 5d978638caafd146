package logger

import (
	"context"
	"sync"

	gCtx "github.com/wangshanqi84-gif/quiver/cores/context"
	"github.com/wangshanqi84-gif/quiver/cores/env"
	"github.com/wangshanqi84-gif/quiver/cores/logger"
	"github.com/wangshanqi84-gif/quiver/cores/metric/sentry"

	"github.com/pkg/errors"
)

var (
	_once sync.Once
	busi  *logger.Logger // 业务日志
	gen   *logger.Logger // 框架日志(编解码失败等)
)

func init() {
	var opts []logger.Option
	if env.GetEnv(env.QvrLogPath) != "" {
		opts = append(opts, logger.SetPath(env.GetEnv(env.QvrLogPath)))
	}
	gen = logger.New("gen", opts...)
}

// InitLogger 初始化前所有日志调用均为空操作
func InitLogger(level string, opts ...logger.Option) {
	_once.Do(func() {
		busi = logger.NewGroup(logger.ParseLevel(level), opts...)
	})
}

func Debug(ctx context.Context, format string, args ...interface{}) {
	if busi == nil {
		return
	}
	busi.Debug(gCtx.AsCtx(ctx), format, args...)
}

func Info(ctx context.Context, format string, args ...interface{}) {
	if busi == nil {
		return
	}
	busi.Info(gCtx.AsCtx(ctx), format, args...)
}

func Warn(ctx context.Context, format string, args ...interface{}) {
	if busi == nil {
		return
	}
	busi.Warn(gCtx.AsCtx(ctx), format, args...)
}

// Error 同时上报sentry
func Error(ctx context.Context, format string, args ...interface{}) {
	if busi == nil {
		return
	}
	sentry.ErrorReport(gCtx.Detach(ctx), errors.Errorf(format, args...))
	busi.Error(gCtx.AsCtx(ctx), format, args...)
}

func Fatal(ctx context.Context, format string, args ...interface{}) {
	if busi == nil {
		return
	}
	busi.Fatal(gCtx.AsCtx(ctx), format, args...)
}

// Gen 框架日志 不受InitLogger控制
func Gen(ctx context.Context, format string, args ...interface{}) {
	if gen == nil {
		return
	}
	gen.Write(gCtx.AsCtx(ctx), format, args...)
}

func GetLogger() *logger.Logger {
	return busi
}

func GetGen() *logger.Logger {
	return gen
}
