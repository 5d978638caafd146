package command

import (
	"context"
	"strconv"
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"
)

// Manager 单个订阅地址的状态
// 合并原始服务节点和指令 计算生效节点并通知所有监听者
type Manager struct {
	key     *url.URL
	backend registry.Backend

	// 保证重新计算串行 同一时刻只看到一致的(节点, 指令)
	recompute sync.Mutex

	mu         sync.Mutex
	groupCache map[string][]*url.URL
	commandRaw string
	command    *Command
	groups     map[string]struct{} // 额外订阅的合并分组
	listeners  map[registry.NotifyListener]*notifier
	effective  []*url.URL
	published  bool
	seq        uint64
}

var (
	_ registry.ServiceListener = (*Manager)(nil)
	_ registry.CommandListener = (*Manager)(nil)
)

func NewManager(key *url.URL, backend registry.Backend) *Manager {
	return &Manager{
		key:        key.Copy(),
		backend:    backend,
		groupCache: make(map[string][]*url.URL),
		groups:     make(map[string]struct{}),
		listeners:  make(map[registry.NotifyListener]*notifier),
	}
}

func (m *Manager) Key() *url.URL {
	return m.key
}

// AddNotifyListener 重复添加忽略
func (m *Manager) AddNotifyListener(l registry.NotifyListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[l]; !ok {
		m.listeners[l] = newNotifier(l)
	}
}

// RemoveNotifyListener 返回剩余监听者数量
// 最后一个监听者移除后后端不再推送 分组缓存和生效节点一并失效
func (m *Manager) RemoveNotifyListener(l registry.NotifyListener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.listeners[l]; ok {
		n.close()
		delete(m.listeners, l)
	}
	if len(m.listeners) == 0 {
		m.groupCache = make(map[string][]*url.URL)
		m.effective = nil
		m.published = false
	}
	return len(m.listeners)
}

// pushedLocked 分组是否仍在接收后端推送 调用方持有m.mu
func (m *Manager) pushedLocked(group string) bool {
	if len(m.listeners) == 0 {
		return false
	}
	if group == m.key.Group() {
		return true
	}
	_, ok := m.groups[group]
	return ok
}

func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// SetCommandCache 设置当前指令 非法指令保留之前的状态
func (m *Manager) SetCommandCache(raw string) {
	var cmd *Command
	if raw != "" {
		c, err := Parse(raw)
		if err != nil {
			logger.Error(context.Background(), "command manager set command cache failed, url:%s, err:%v", m.key.SimpleString(), err)
			return
		}
		c.Sort()
		cmd = c
	}
	m.mu.Lock()
	m.commandRaw = raw
	m.command = cmd
	m.mu.Unlock()
}

// CommandCache 当前原始指令
func (m *Manager) CommandCache() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commandRaw
}

// DiscoverServiceWithCommand 应用指令计算生效节点
// weights记录合并分组的权重 previewIP非空时用其作为调用方ip 且不修改任何状态
func (m *Manager) DiscoverServiceWithCommand(ctx context.Context, key *url.URL, weights map[string]int, cmd *Command, previewIP string) ([]*url.URL, error) {
	localIP := previewIP
	if localIP == "" {
		localIP = key.Host
	}
	groups, rules := cmd.plan(key.Path)
	merged := len(groups) > 0
	if !merged {
		groups = []MergeGroup{{Name: key.Group(), Weight: 1}}
	}
	var result []*url.URL
	for _, g := range groups {
		urls, err := m.groupServices(ctx, key, g.Name)
		if err != nil {
			return nil, err
		}
		if merged && weights != nil {
			weights[g.Name] = g.Weight
		}
		if len(groups) > 1 {
			w := strconv.Itoa(g.Weight)
			for _, u := range urls {
				result = append(result, u.WithParameter(url.ParamWeight, w))
			}
			continue
		}
		result = append(result, urls...)
	}
	result = route(result, rules, localIP)
	if result == nil {
		result = []*url.URL{}
	}
	return result, nil
}

// groupServices 仍在推送的分组使用缓存 其余从后端发现
func (m *Manager) groupServices(ctx context.Context, key *url.URL, group string) ([]*url.URL, error) {
	m.mu.Lock()
	cached, ok := m.groupCache[group]
	ok = ok && m.pushedLocked(group)
	m.mu.Unlock()
	if ok {
		return cached, nil
	}
	gk := key
	if key.Group() != group {
		gk = key.WithParameter(url.ParamGroup, group)
	}
	return m.backend.DiscoverService(ctx, gk)
}

// route 按调用方ip过滤节点
// 每个节点由第一条命中的规则决定去留 未命中的节点在存在允许规则时被过滤
func route(urls []*url.URL, rules []routeRule, ip string) []*url.URL {
	var (
		applicable []routeRule
		allowList  bool
	)
	for _, r := range rules {
		if r.matchFrom(ip) {
			applicable = append(applicable, r)
			if !r.toNot {
				allowList = true
			}
		}
	}
	if len(applicable) == 0 {
		return urls
	}
	out := make([]*url.URL, 0, len(urls))
	for _, u := range urls {
		keep := !allowList
		for _, r := range applicable {
			if r.matchTarget(u.Host) {
				keep = !r.toNot
				break
			}
		}
		if keep {
			out = append(out, u)
		}
	}
	return out
}

// NotifyService 服务节点变化
func (m *Manager) NotifyService(key *url.URL, urls []*url.URL) {
	group := key.Group()
	cp := make([]*url.URL, len(urls))
	copy(cp, urls)
	m.mu.Lock()
	if !m.pushedLocked(group) {
		m.mu.Unlock()
		logger.Info(context.Background(), "command manager drop service update, url:%s, group:%s not subscribed", m.key.SimpleString(), group)
		return
	}
	m.groupCache[group] = cp
	m.mu.Unlock()
	logger.Info(context.Background(), "command manager notify service, url:%s, group:%s, size:%d", m.key.SimpleString(), group, len(urls))
	m.refresh(context.Background())
}

// NotifyCommand 指令变化 非法指令保留之前的状态
func (m *Manager) NotifyCommand(key *url.URL, raw string) {
	ctx := context.Background()
	var cmd *Command
	if raw != "" {
		c, err := Parse(raw)
		if err != nil {
			logger.Error(ctx, "command manager parse command failed, url:%s, err:%v", m.key.SimpleString(), err)
			return
		}
		c.Sort()
		cmd = c
	}
	m.mu.Lock()
	if len(m.listeners) == 0 {
		m.mu.Unlock()
		logger.Info(ctx, "command manager drop command update, url:%s, no listener", m.key.SimpleString())
		return
	}
	m.commandRaw = raw
	m.command = cmd
	m.mu.Unlock()
	logger.Info(ctx, "command manager notify command, url:%s, command:%s", m.key.SimpleString(), raw)

	groups, _ := cmd.plan(m.key.Path)
	m.syncGroups(ctx, groups)
	m.refresh(ctx)
}

// syncGroups 订阅新的合并分组 取消不再需要的分组
func (m *Manager) syncGroups(ctx context.Context, groups []MergeGroup) {
	own := m.key.Group()
	want := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name != own {
			want[g.Name] = struct{}{}
		}
	}
	m.mu.Lock()
	var add, remove []string
	for g := range want {
		if _, ok := m.groups[g]; !ok {
			add = append(add, g)
			m.groups[g] = struct{}{}
		}
	}
	for g := range m.groups {
		if _, ok := want[g]; !ok {
			remove = append(remove, g)
			delete(m.groups, g)
			delete(m.groupCache, g)
		}
	}
	m.mu.Unlock()

	for _, g := range remove {
		if err := m.backend.UnsubscribeService(ctx, m.key.WithParameter(url.ParamGroup, g), m); err != nil {
			logger.Warn(ctx, "command manager unsubscribe group %s failed, url:%s, err:%v", g, m.key.SimpleString(), err)
		}
	}
	for _, g := range add {
		if err := m.backend.SubscribeService(ctx, m.key.WithParameter(url.ParamGroup, g), m); err != nil {
			logger.Warn(ctx, "command manager subscribe group %s failed, url:%s, err:%v", g, m.key.SimpleString(), err)
		}
	}
}

// releaseGroups 取消所有额外订阅的分组
func (m *Manager) releaseGroups(ctx context.Context) {
	m.syncGroups(ctx, nil)
}

// refresh 重新计算生效节点 变化时通知
func (m *Manager) refresh(ctx context.Context) {
	m.recompute.Lock()
	defer m.recompute.Unlock()

	m.mu.Lock()
	cmd := m.command
	m.mu.Unlock()

	urls, err := m.DiscoverServiceWithCommand(ctx, m.key, map[string]int{}, cmd, "")
	if err != nil {
		logger.Error(ctx, "command manager recompute failed, url:%s, err:%v", m.key.SimpleString(), err)
		return
	}
	m.publish(urls)
}

func (m *Manager) publish(urls []*url.URL) {
	m.mu.Lock()
	if m.published && sameURLs(m.effective, urls) {
		m.mu.Unlock()
		return
	}
	m.effective = urls
	m.published = true
	m.seq++
	s := &snapshot{seq: m.seq, key: m.key, urls: urls}
	ns := make([]*notifier, 0, len(m.listeners))
	for _, n := range m.listeners {
		ns = append(ns, n)
	}
	m.mu.Unlock()
	for _, n := range ns {
		n.post(s)
	}
}

// reserve 预留快照序号 首次同步通知使用
func (m *Manager) reserve() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

// notifyNow 同步通知单个监听者
func (m *Manager) notifyNow(seq uint64, l registry.NotifyListener, urls []*url.URL) {
	m.mu.Lock()
	n, ok := m.listeners[l]
	m.mu.Unlock()
	if !ok {
		return
	}
	n.deliver(&snapshot{seq: seq, key: m.key, urls: urls})
}

// Effective 最近一次计算的生效节点
func (m *Manager) Effective() []*url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*url.URL, len(m.effective))
	copy(out, m.effective)
	return out
}

func sameURLs(a, b []*url.URL) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
