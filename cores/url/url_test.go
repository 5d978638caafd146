package url

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *URL
		wantErr bool
	}{
		{
			name: "full",
			raw:  "quiver://10.0.0.1:8002/com.foo.Bar?group=g1&nodeType=service",
			want: &URL{
				Protocol:   "quiver",
				Host:       "10.0.0.1",
				Port:       8002,
				Path:       "com.foo.Bar",
				Parameters: map[string]string{"group": "g1", "nodeType": "service"},
			},
		},
		{
			name: "no port no params",
			raw:  "quiver://10.0.0.1/com.foo.Bar",
			want: &URL{
				Protocol:   "quiver",
				Host:       "10.0.0.1",
				Path:       "com.foo.Bar",
				Parameters: map[string]string{},
			},
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "no protocol", raw: "10.0.0.1:80/a", wantErr: true},
		{name: "bad port", raw: "quiver://10.0.0.1:abc/a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIdentityIgnoresParameterOrder(t *testing.T) {
	a := New("quiver", "10.0.0.1", 80, "svc", map[string]string{"a": "1", "b": "2"})
	b := New("quiver", "10.0.0.1", 80, "svc", map[string]string{"b": "2", "a": "1"})
	if a.Identity() != b.Identity() {
		t.Fatalf("%s != %s", a.Identity(), b.Identity())
	}
	c := b.WithParameter("a", "3")
	if a.Equal(c) {
		t.Fatalf("different parameters must not be equal")
	}
	if b.Parameters["a"] != "1" {
		t.Fatalf("WithParameter mutated the receiver")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	u := New("quiver", "10.0.0.1", 80, "com.foo.Bar", map[string]string{"group": "g 1", "weight": "3"})
	p, err := Parse(u.Identity())
	if err != nil {
		t.Fatalf("parse identity: %v", err)
	}
	if !p.Equal(u) {
		t.Fatalf("round trip %s != %s", p.Identity(), u.Identity())
	}
}

func TestCopyIsIndependent(t *testing.T) {
	u := New("quiver", "h", 1, "p", map[string]string{"k": "v"})
	c := u.Copy()
	c.Parameters["k"] = "x"
	if u.Parameters["k"] != "v" {
		t.Fatalf("copy shares parameters")
	}
}

func TestParameters(t *testing.T) {
	u := New("quiver", "h", 1, "p", map[string]string{"retryPeriod": "100", "bad": "x", "nodeType": "referer"})
	if got := u.IntParameter("retryPeriod", 5); got != 100 {
		t.Fatalf("retryPeriod = %d", got)
	}
	if got := u.IntParameter("bad", 5); got != 5 {
		t.Fatalf("bad = %d", got)
	}
	if got := u.Group(); got != DefaultGroup {
		t.Fatalf("group = %s", got)
	}
	if got := u.Serialization(); got != DefaultSerialization {
		t.Fatalf("serialization = %s", got)
	}
	if !u.IsReferer() {
		t.Fatalf("expected referer")
	}
}
