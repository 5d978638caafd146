package command

import (
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/metric/prom"
	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
)

type snapshot struct {
	seq  uint64
	key  *url.URL
	urls []*url.URL
}

// notifier 单个监听者的通知队列
// 只保留最新的快照 慢监听者不会阻塞manager
type notifier struct {
	listener registry.NotifyListener

	mu      sync.Mutex
	pending *snapshot
	running bool
	closed  bool

	deliverMu sync.Mutex
	delivered uint64
}

func newNotifier(l registry.NotifyListener) *notifier {
	return &notifier{listener: l}
}

func (n *notifier) post(s *snapshot) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if n.pending == nil || s.seq > n.pending.seq {
		n.pending = s
	}
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()
	go n.drain()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		s := n.pending
		n.pending = nil
		if s == nil || n.closed {
			n.running = false
			n.mu.Unlock()
			return
		}
		n.mu.Unlock()
		n.deliver(s)
	}
}

// deliver 序号不大于已送达的快照直接丢弃
func (n *notifier) deliver(s *snapshot) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()
	if s.seq <= n.delivered {
		return
	}
	n.delivered = s.seq
	urls := make([]*url.URL, len(s.urls))
	copy(urls, s.urls)
	n.listener.Notify(s.key, urls)
	prom.Notify()
}

func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.pending = nil
	n.mu.Unlock()
}
