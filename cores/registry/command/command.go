// Package command 指令(流量调度)解析及应用
package command

import (
	"encoding/json"
	"path"
	"sort"
	"strconv"
	"strings"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
)

// 指令类型
const (
	TypeTraffic = 0 // 流量控制
)

// Command 指令整体
type Command struct {
	ClientCommandList []*ClientCommand `json:"clientCommandList"`
}

// ClientCommand 单条客户端指令
type ClientCommand struct {
	Index       int      `json:"index"`
	Version     string   `json:"version,omitempty"`
	Dc          string   `json:"dc,omitempty"`
	CommandType int      `json:"commandType"`
	Pattern     string   `json:"pattern"`
	MergeGroups []string `json:"mergeGroups,omitempty"`
	RouteRules  []string `json:"routeRules,omitempty"`
	Remark      string   `json:"remark,omitempty"`

	groups []MergeGroup
	rules  []routeRule
}

// MergeGroup 合并分组 name:weight
type MergeGroup struct {
	Name   string
	Weight int
}

// routeRule from to [!]target
type routeRule struct {
	from    string
	fromNot bool
	to      string
	toNot   bool
}

// Parse 解析原始指令字符串
func Parse(raw string) (*Command, error) {
	cmd := &Command{}
	if err := json.Unmarshal([]byte(raw), cmd); err != nil {
		return nil, gErrors.Framework(gErrors.ErrCommandParse, "invalid command json", err)
	}
	for i, cc := range cmd.ClientCommandList {
		if cc == nil {
			return nil, gErrors.Frameworkf(gErrors.ErrCommandParse, "client command %d is null", i)
		}
		if err := cc.compile(); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

func (cc *ClientCommand) compile() error {
	cc.Pattern = strings.TrimSpace(cc.Pattern)
	if cc.Pattern == "" {
		return gErrors.Frameworkf(gErrors.ErrCommandParse, "command %d has empty pattern", cc.Index)
	}
	for _, p := range strings.Split(cc.Pattern, ",") {
		if _, err := path.Match(strings.TrimSpace(p), ""); err != nil {
			return gErrors.Framework(gErrors.ErrCommandParse, "bad pattern "+cc.Pattern, err)
		}
	}
	cc.groups = cc.groups[:0]
	for _, g := range cc.MergeGroups {
		mg, err := parseMergeGroup(g)
		if err != nil {
			return err
		}
		cc.groups = append(cc.groups, mg)
	}
	cc.rules = cc.rules[:0]
	for _, r := range cc.RouteRules {
		rr, err := parseRouteRule(r)
		if err != nil {
			return err
		}
		cc.rules = append(cc.rules, rr)
	}
	return nil
}

func parseMergeGroup(s string) (MergeGroup, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 {
		return MergeGroup{}, gErrors.Frameworkf(gErrors.ErrCommandParse, "merge group %q must be name:weight", s)
	}
	name := strings.TrimSpace(s[:idx])
	weight, err := strconv.Atoi(strings.TrimSpace(s[idx+1:]))
	if err != nil || weight < 0 || name == "" {
		return MergeGroup{}, gErrors.Frameworkf(gErrors.ErrCommandParse, "merge group %q must be name:weight", s)
	}
	return MergeGroup{Name: name, Weight: weight}, nil
}

func parseRouteRule(s string) (routeRule, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 || fields[1] != "to" {
		return routeRule{}, gErrors.Frameworkf(gErrors.ErrCommandParse, "route rule %q must be 'from to target'", s)
	}
	rr := routeRule{}
	rr.from, rr.fromNot = strings.TrimPrefix(fields[0], "!"), strings.HasPrefix(fields[0], "!")
	rr.to, rr.toNot = strings.TrimPrefix(fields[2], "!"), strings.HasPrefix(fields[2], "!")
	if rr.from == "" || rr.to == "" {
		return routeRule{}, gErrors.Frameworkf(gErrors.ErrCommandParse, "route rule %q has empty address", s)
	}
	for _, p := range []string{rr.from, rr.to} {
		if _, err := path.Match(p, ""); err != nil {
			return routeRule{}, gErrors.Framework(gErrors.ErrCommandParse, "bad route rule "+s, err)
		}
	}
	return rr, nil
}

// Sort 按优先级排序 index升序 同index时pattern更具体的优先
func (c *Command) Sort() {
	sort.SliceStable(c.ClientCommandList, func(i, j int) bool {
		a, b := c.ClientCommandList[i], c.ClientCommandList[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return specificity(a.Pattern) > specificity(b.Pattern)
	})
}

// String 序列化为原始格式
func (c *Command) String() string {
	bs, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(bs)
}

// specificity 非通配字符数
func specificity(pattern string) int {
	n := 0
	for _, r := range pattern {
		switch r {
		case '*', '?', ',', ' ':
		default:
			n++
		}
	}
	return n
}

// MatchService 服务路径是否命中该指令
func (cc *ClientCommand) MatchService(service string) bool {
	for _, p := range strings.Split(cc.Pattern, ",") {
		if ok, _ := path.Match(strings.TrimSpace(p), service); ok {
			return true
		}
	}
	return false
}

// Groups 合并分组
func (cc *ClientCommand) Groups() []MergeGroup {
	return cc.groups
}

func (r routeRule) matchFrom(ip string) bool {
	ok, _ := path.Match(r.from, ip)
	return ok != r.fromNot
}

func (r routeRule) matchTarget(host string) bool {
	ok, _ := path.Match(r.to, host)
	return ok
}

// plan 对服务生效的合并分组与路由规则
// 只有流量控制类指令生效
func (c *Command) plan(service string) ([]MergeGroup, []routeRule) {
	if c == nil {
		return nil, nil
	}
	var (
		groups []MergeGroup
		rules  []routeRule
	)
	for _, cc := range c.ClientCommandList {
		if cc.CommandType != TypeTraffic || !cc.MatchService(service) {
			continue
		}
		if groups == nil && len(cc.groups) > 0 {
			groups = cc.groups
		}
		rules = append(rules, cc.rules...)
	}
	return groups, rules
}
