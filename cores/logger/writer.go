package logger

import (
	"io"
	"sync"
)

type Writer interface {
	check(Level) Writer
	Write(p []byte) (n int, err error)
}

type SingleWriter struct {
	r     io.Writer
	level Level
}

func (sw SingleWriter) check(dst Level) Writer {
	if sw.level == NoneLevel || sw.level == dst || sw.level.less(dst) {
		return sw
	}
	return nil
}

func (sw SingleWriter) Write(p []byte) (n int, err error) {
	return sw.r.Write(p)
}

type GroupWriter []*SingleWriter

func (gw GroupWriter) check(dst Level) Writer {
	g := GroupWriter{}
	for _, sw := range gw {
		if sw.level == NoneLevel || sw.level == dst || sw.level.less(dst) {
			g = append(g, sw)
		}
	}
	return g
}

func (gw GroupWriter) Write(p []byte) (n int, err error) {
	if len(gw) == 0 {
		return
	}
	for _, sw := range gw {
		n, err = sw.r.Write(p)
	}
	return
}

// syncWriter 非文件输出(终端/测试) 单个输出按级别过滤
type syncWriter struct {
	mu    *sync.Mutex
	w     io.Writer
	level Level
}

func (s syncWriter) check(dst Level) Writer {
	if s.level == NoneLevel || s.level == dst || s.level.less(dst) {
		return s
	}
	return nil
}

func (s syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
