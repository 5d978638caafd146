package nacos

import (
	"context"
	"fmt"

	"github.com/wangshanqi84-gif/quiver/cores/logger"
)

// Logger 将sdk日志写入框架日志
type Logger struct {
	*logger.Logger
}

func (lgr *Logger) Info(args ...interface{}) {
	lgr.Logger.Info(context.TODO(), "%s", fmt.Sprint(args...))
}

func (lgr *Logger) Warn(args ...interface{}) {
	lgr.Logger.Warn(context.TODO(), "%s", fmt.Sprint(args...))
}

func (lgr *Logger) Error(args ...interface{}) {
	lgr.Logger.Error(context.TODO(), "%s", fmt.Sprint(args...))
}

func (lgr *Logger) Debug(args ...interface{}) {
	lgr.Logger.Debug(context.TODO(), "%s", fmt.Sprint(args...))
}

func (lgr *Logger) Infof(format string, args ...interface{}) {
	lgr.Logger.Info(context.TODO(), format, args...)
}

func (lgr *Logger) Warnf(format string, args ...interface{}) {
	lgr.Logger.Warn(context.TODO(), format, args...)
}

func (lgr *Logger) Errorf(format string, args ...interface{}) {
	lgr.Logger.Error(context.TODO(), format, args...)
}

func (lgr *Logger) Debugf(format string, args ...interface{}) {
	lgr.Logger.Debug(context.TODO(), format, args...)
}
