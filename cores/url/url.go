// Package url 路由键/服务节点地址
package url

import (
	"fmt"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// URL 服务地址 protocol://host:port/path?k=v
type URL struct {
	Protocol   string
	Host       string
	Port       int
	Path       string
	Parameters map[string]string
}

func New(protocol string, host string, port int, path string, params map[string]string) *URL {
	u := &URL{
		Protocol:   protocol,
		Host:       host,
		Port:       port,
		Path:       path,
		Parameters: make(map[string]string, len(params)),
	}
	for k, v := range params {
		u.Parameters[k] = v
	}
	return u
}

// Parse 解析字符串地址
func Parse(raw string) (*URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("url is empty")
	}
	if !strings.Contains(raw, "://") {
		return nil, errors.Errorf("url %q missing protocol", raw)
	}
	pu, err := neturl.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse url %q", raw)
	}
	u := &URL{
		Protocol:   pu.Scheme,
		Host:       pu.Hostname(),
		Path:       strings.TrimLeft(pu.Path, "/"),
		Parameters: make(map[string]string),
	}
	if p := pu.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "parse url %q port", raw)
		}
		u.Port = port
	}
	for k, vs := range pu.Query() {
		if len(vs) > 0 {
			u.Parameters[k] = vs[len(vs)-1]
		}
	}
	return u, nil
}

// Copy 深拷贝 注册中心操作均使用拷贝避免修改调用方对象
func (u *URL) Copy() *URL {
	return New(u.Protocol, u.Host, u.Port, u.Path, u.Parameters)
}

// Address host:port
func (u *URL) Address() string {
	if u.Port <= 0 {
		return u.Host
	}
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// Identity 唯一标识 参数按key排序 内容相同则相等
func (u *URL) Identity() string {
	var b strings.Builder
	b.WriteString(u.Protocol)
	b.WriteString("://")
	b.WriteString(u.Address())
	b.WriteString("/")
	b.WriteString(u.Path)
	if len(u.Parameters) == 0 {
		return b.String()
	}
	b.WriteString("?")
	b.WriteString(u.encodeParameters())
	return b.String()
}

func (u *URL) String() string {
	return u.Identity()
}

// SimpleString 日志用
func (u *URL) SimpleString() string {
	return fmt.Sprintf("%s://%s/%s?group=%s", u.Protocol, u.Address(), u.Path, u.Group())
}

func (u *URL) encodeParameters() string {
	keys := make([]string, 0, len(u.Parameters))
	for k := range u.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ss := make([]string, 0, len(keys))
	for _, k := range keys {
		ss = append(ss, neturl.QueryEscape(k)+"="+neturl.QueryEscape(u.Parameters[k]))
	}
	return strings.Join(ss, "&")
}

func (u *URL) Parameter(name string, def string) string {
	if v, has := u.Parameters[name]; has && v != "" {
		return v
	}
	return def
}

func (u *URL) IntParameter(name string, def int) int {
	v, has := u.Parameters[name]
	if !has {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// WithParameter 返回设置了参数的拷贝
func (u *URL) WithParameter(name string, value string) *URL {
	c := u.Copy()
	c.Parameters[name] = value
	return c
}

func (u *URL) Group() string {
	return u.Parameter(ParamGroup, DefaultGroup)
}

func (u *URL) Serialization() string {
	return u.Parameter(ParamSerialization, DefaultSerialization)
}

func (u *URL) IsReferer() bool {
	return u.Parameters[ParamNodeType] == NodeTypeReferer
}

// Equal 内容相同
func (u *URL) Equal(o *URL) bool {
	if u == nil || o == nil {
		return u == o
	}
	return u.Identity() == o.Identity()
}

// Identities 批量取标识 用于比较节点列表
func Identities(urls []*URL) []string {
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		ids = append(ids, u.Identity())
	}
	return ids
}
