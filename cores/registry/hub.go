package registry

import (
	"context"
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/url"
)

// Subscription 监听者及其订阅地址
type Subscription[L comparable] struct {
	Key      *url.URL
	Listener L
}

type hubEntry[L comparable] struct {
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[L]*url.URL
}

// Hub 每个节点key一个watch循环 多个监听者共享
type Hub[L comparable] struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]*hubEntry[L]
}

func NewHub[L comparable](ctx context.Context) *Hub[L] {
	h := &Hub[L]{
		entries: make(map[string]*hubEntry[L]),
	}
	h.ctx, h.cancel = context.WithCancel(ctx)
	return h
}

// Add 添加监听者 首个监听者启动watch
func (h *Hub[L]) Add(nodeKey string, key *url.URL, l L, watch func(ctx context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, has := h.entries[nodeKey]
	if has {
		e.subs[l] = key
		return
	}
	e = &hubEntry[L]{
		subs: map[L]*url.URL{l: key},
		done: make(chan struct{}),
	}
	var ctx context.Context
	ctx, e.cancel = context.WithCancel(h.ctx)
	h.entries[nodeKey] = e
	go func() {
		defer close(e.done)
		watch(ctx)
	}()
}

// Remove 移除监听者 最后一个移除时取消watch 不等待退出(可能在watch回调中调用)
func (h *Hub[L]) Remove(nodeKey string, l L) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, has := h.entries[nodeKey]
	if !has {
		return
	}
	delete(e.subs, l)
	if len(e.subs) > 0 {
		return
	}
	delete(h.entries, nodeKey)
	e.cancel()
}

// Subscriptions 当前监听者快照
func (h *Hub[L]) Subscriptions(nodeKey string) []Subscription[L] {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, has := h.entries[nodeKey]
	if !has {
		return nil
	}
	subs := make([]Subscription[L], 0, len(e.subs))
	for l, key := range e.subs {
		subs = append(subs, Subscription[L]{Key: key, Listener: l})
	}
	return subs
}

// Close 停止全部watch
func (h *Hub[L]) Close() {
	h.cancel()
	h.mu.Lock()
	entries := h.entries
	h.entries = make(map[string]*hubEntry[L])
	h.mu.Unlock()
	for _, e := range entries {
		<-e.done
	}
}
