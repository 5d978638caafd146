// Package memory 进程内注册中心 直连模式及测试使用
package memory

import (
	"context"
	"sync"

	"github.com/wangshanqi84-gif/quiver/cores/registry"
	"github.com/wangshanqi84-gif/quiver/cores/url"
)

type Backend struct {
	root string

	mu               sync.RWMutex
	services         map[string]map[string]*url.URL // service path => address => url
	commands         map[string]string              // command path => command
	serviceListeners map[string]map[registry.ServiceListener]*url.URL
	commandListeners map[string]map[registry.CommandListener]*url.URL
}

var _ registry.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		root:             registry.DefaultRoot,
		services:         make(map[string]map[string]*url.URL),
		commands:         make(map[string]string),
		serviceListeners: make(map[string]map[registry.ServiceListener]*url.URL),
		commandListeners: make(map[string]map[registry.CommandListener]*url.URL),
	}
}

func (b *Backend) Register(_ context.Context, u *url.URL) error {
	p := registry.ServicePath(b.root, u)
	b.mu.Lock()
	nodes, ok := b.services[p]
	if !ok {
		nodes = make(map[string]*url.URL)
		b.services[p] = nodes
	}
	nodes[u.Address()] = u.Copy()
	b.mu.Unlock()
	b.notifyService(p)
	return nil
}

func (b *Backend) Unregister(_ context.Context, u *url.URL) error {
	p := registry.ServicePath(b.root, u)
	b.mu.Lock()
	if nodes, ok := b.services[p]; ok {
		delete(nodes, u.Address())
	}
	b.mu.Unlock()
	b.notifyService(p)
	return nil
}

func (b *Backend) SubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	p := registry.ServicePath(b.root, key)
	b.mu.Lock()
	defer b.mu.Unlock()
	ls, ok := b.serviceListeners[p]
	if !ok {
		ls = make(map[registry.ServiceListener]*url.URL)
		b.serviceListeners[p] = ls
	}
	ls[l] = key.Copy()
	return nil
}

func (b *Backend) UnsubscribeService(_ context.Context, key *url.URL, l registry.ServiceListener) error {
	p := registry.ServicePath(b.root, key)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.serviceListeners[p], l)
	return nil
}

func (b *Backend) SubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	p := registry.CommandPath(b.root, key)
	b.mu.Lock()
	defer b.mu.Unlock()
	ls, ok := b.commandListeners[p]
	if !ok {
		ls = make(map[registry.CommandListener]*url.URL)
		b.commandListeners[p] = ls
	}
	ls[l] = key.Copy()
	return nil
}

func (b *Backend) UnsubscribeCommand(_ context.Context, key *url.URL, l registry.CommandListener) error {
	p := registry.CommandPath(b.root, key)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.commandListeners[p], l)
	return nil
}

func (b *Backend) DiscoverService(_ context.Context, key *url.URL) ([]*url.URL, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodes(registry.ServicePath(b.root, key)), nil
}

func (b *Backend) DiscoverCommand(_ context.Context, key *url.URL) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.commands[registry.CommandPath(b.root, key)], nil
}

// SetCommand 设置分组的指令 空字符串清除
func (b *Backend) SetCommand(_ context.Context, group string, command string) error {
	p := registry.CommandPath(b.root, url.New("", "", 0, "", map[string]string{url.ParamGroup: group}))
	b.mu.Lock()
	if command == "" {
		delete(b.commands, p)
	} else {
		b.commands[p] = command
	}
	ls := make(map[registry.CommandListener]*url.URL, len(b.commandListeners[p]))
	for l, k := range b.commandListeners[p] {
		ls[l] = k
	}
	b.mu.Unlock()
	for l, k := range ls {
		l.NotifyCommand(k, command)
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serviceListeners = make(map[string]map[registry.ServiceListener]*url.URL)
	b.commandListeners = make(map[string]map[registry.CommandListener]*url.URL)
	return nil
}

func (b *Backend) nodes(p string) []*url.URL {
	nodes := b.services[p]
	urls := make([]*url.URL, 0, len(nodes))
	for _, u := range nodes {
		urls = append(urls, u.Copy())
	}
	registry.SortURLs(urls)
	return urls
}

// notifyService 锁外回调 监听者可以重入
func (b *Backend) notifyService(p string) {
	b.mu.RLock()
	urls := b.nodes(p)
	ls := make(map[registry.ServiceListener]*url.URL, len(b.serviceListeners[p]))
	for l, k := range b.serviceListeners[p] {
		ls[l] = k
	}
	b.mu.RUnlock()
	for l, k := range ls {
		l.NotifyService(k, urls)
	}
}
