package command

import (
	"errors"
	"testing"

	gErrors "github.com/wangshanqi84-gif/quiver/cores/errors"
	"github.com/wangshanqi84-gif/quiver/cores/url"
)

func TestParse(t *testing.T) {
	raw := `{"clientCommandList":[{"index":1,"version":"1.0","dc":"yf","commandType":0,
		"pattern":"com.foo.*","mergeGroups":["g1:1","g2:2"],
		"routeRules":["10.75.0.* to 10.75.1.*","* to !10.75.2.*"],"remark":"r"}]}`
	cmd, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cmd.ClientCommandList) != 1 {
		t.Fatalf("commands = %d", len(cmd.ClientCommandList))
	}
	cc := cmd.ClientCommandList[0]
	if got := cc.Groups(); len(got) != 2 || got[1] != (MergeGroup{Name: "g2", Weight: 2}) {
		t.Fatalf("groups = %+v", got)
	}
	if len(cc.rules) != 2 || !cc.rules[1].toNot || cc.rules[1].to != "10.75.2.*" {
		t.Fatalf("rules = %+v", cc.rules)
	}
	again, err := Parse(cmd.String())
	if err != nil || len(again.ClientCommandList) != 1 || again.ClientCommandList[0].Pattern != "com.foo.*" {
		t.Fatalf("String() output does not parse back: %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{clientCommandList`},
		{"null command", `{"clientCommandList":[null]}`},
		{"empty pattern", `{"clientCommandList":[{"index":1,"pattern":"  "}]}`},
		{"bad pattern", `{"clientCommandList":[{"index":1,"pattern":"com.[foo"}]}`},
		{"group without weight", `{"clientCommandList":[{"pattern":"*","mergeGroups":["g1"]}]}`},
		{"negative weight", `{"clientCommandList":[{"pattern":"*","mergeGroups":["g1:-1"]}]}`},
		{"weight not int", `{"clientCommandList":[{"pattern":"*","mergeGroups":["g1:x"]}]}`},
		{"rule without to", `{"clientCommandList":[{"pattern":"*","routeRules":["* 10.0.0.1"]}]}`},
		{"rule empty target", `{"clientCommandList":[{"pattern":"*","routeRules":["* to !"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.Is(err, gErrors.ErrCommandParse) {
				t.Fatalf("expected command parse error, got %v", err)
			}
		})
	}
}

func TestSort(t *testing.T) {
	cmd, err := Parse(`{"clientCommandList":[
		{"index":2,"pattern":"*"},
		{"index":1,"pattern":"com.*"},
		{"index":1,"pattern":"com.foo.Svc"},
		{"index":0,"pattern":"*"}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cmd.Sort()
	want := []string{"*", "com.foo.Svc", "com.*", "*"}
	for i, cc := range cmd.ClientCommandList {
		if cc.Pattern != want[i] {
			t.Fatalf("position %d = %s, want %s", i, cc.Pattern, want[i])
		}
	}
	if cmd.ClientCommandList[0].Index != 0 || cmd.ClientCommandList[3].Index != 2 {
		t.Fatalf("index order broken")
	}
}

func hosts(urls []*url.URL) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.Host)
	}
	return out
}

func endpoints(hs ...string) []*url.URL {
	urls := make([]*url.URL, 0, len(hs))
	for _, h := range hs {
		urls = append(urls, url.New("quiver", h, 8001, "com.foo.Svc", nil))
	}
	return urls
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "specific index first",
			raw: `{"clientCommandList":[
				{"index":2,"pattern":"com.foo.*","routeRules":["* to 10.0.0.*"]},
				{"index":1,"pattern":"com.foo.Svc","routeRules":["10.1.* to !10.0.0.1"]}]}`,
			want: []string{"10.0.0.2"},
		},
		{
			name: "allow first",
			raw: `{"clientCommandList":[
				{"index":1,"pattern":"com.foo.*","routeRules":["* to 10.0.0.*"]},
				{"index":2,"pattern":"com.foo.Svc","routeRules":["10.1.* to !10.0.0.1"]}]}`,
			want: []string{"10.0.0.1", "10.0.0.2"},
		},
		{
			name: "same index more specific pattern",
			raw: `{"clientCommandList":[
				{"index":1,"pattern":"com.*","routeRules":["* to 10.0.0.*"]},
				{"index":1,"pattern":"com.foo.Svc","routeRules":["* to !10.0.0.1"]}]}`,
			want: []string{"10.0.0.2"},
		},
		{
			name: "only exclusions keep the rest",
			raw:  `{"clientCommandList":[{"index":1,"pattern":"*","routeRules":["* to !10.0.0.1"]}]}`,
			want: []string{"10.0.0.2", "10.2.0.1"},
		},
		{
			name: "caller not matched",
			raw:  `{"clientCommandList":[{"index":1,"pattern":"*","routeRules":["10.9.* to 10.0.0.1"]}]}`,
			want: []string{"10.0.0.1", "10.0.0.2", "10.2.0.1"},
		},
		{
			name: "negated caller",
			raw:  `{"clientCommandList":[{"index":1,"pattern":"*","routeRules":["!10.9.* to 10.2.0.1"]}]}`,
			want: []string{"10.2.0.1"},
		},
		{
			name: "other service",
			raw:  `{"clientCommandList":[{"index":1,"pattern":"com.bar.*","routeRules":["* to !10.0.0.1"]}]}`,
			want: []string{"10.0.0.1", "10.0.0.2", "10.2.0.1"},
		},
		{
			name: "non traffic command ignored",
			raw:  `{"clientCommandList":[{"index":1,"commandType":1,"pattern":"*","routeRules":["* to !10.0.0.1"]}]}`,
			want: []string{"10.0.0.1", "10.0.0.2", "10.2.0.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			cmd.Sort()
			_, rules := cmd.plan("com.foo.Svc")
			got := hosts(route(endpoints("10.0.0.1", "10.0.0.2", "10.2.0.1"), rules, "10.1.0.5"))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPlanMergeGroups(t *testing.T) {
	cmd, err := Parse(`{"clientCommandList":[
		{"index":1,"pattern":"com.foo.*","routeRules":["* to !10.0.0.1"]},
		{"index":2,"pattern":"*","mergeGroups":["g1:1","g2:3"]},
		{"index":3,"pattern":"*","mergeGroups":["g3:1"]}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cmd.Sort()
	groups, rules := cmd.plan("com.foo.Svc")
	if len(groups) != 2 || groups[0].Name != "g1" || groups[1].Weight != 3 {
		t.Fatalf("groups = %+v", groups)
	}
	if len(rules) != 1 {
		t.Fatalf("rules = %+v", rules)
	}
	var nilCmd *Command
	if g, r := nilCmd.plan("x"); g != nil || r != nil {
		t.Fatalf("nil command must plan nothing")
	}
}
