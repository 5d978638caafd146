package registry

import (
	"sort"
	"strings"

	"github.com/wangshanqi84-gif/quiver/cores/url"
)

const (
	DefaultRoot = "/quiver"

	serverDir  = "server"
	commandDir = "command"
)

// ServicePath {root}/{group}/{path}/server
func ServicePath(root string, key *url.URL) string {
	return strings.Join([]string{strings.TrimRight(root, "/"), key.Group(), key.Path, serverDir}, "/")
}

// NodePath {root}/{group}/{path}/server/{host:port}
func NodePath(root string, u *url.URL) string {
	return ServicePath(root, u) + "/" + u.Address()
}

// CommandPath {root}/{group}/command
func CommandPath(root string, key *url.URL) string {
	return strings.Join([]string{strings.TrimRight(root, "/"), key.Group(), commandDir}, "/")
}

// ParseNodes 解析节点内容 非法内容跳过 结果按地址排序
func ParseNodes(values []string) []*url.URL {
	urls := make([]*url.URL, 0, len(values))
	for _, v := range values {
		u, err := url.Parse(v)
		if err != nil {
			continue
		}
		urls = append(urls, u)
	}
	SortURLs(urls)
	return urls
}

// SortURLs 按地址排序 保证同一节点集合的通知内容一致
func SortURLs(urls []*url.URL) {
	sort.Slice(urls, func(i, j int) bool {
		if urls[i].Address() != urls[j].Address() {
			return urls[i].Address() < urls[j].Address()
		}
		return urls[i].Identity() < urls[j].Identity()
	})
}
