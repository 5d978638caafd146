package context

import (
	"context"
	"testing"
)

func TestCallContext(t *testing.T) {
	ctx := NewCallContext(context.Background(), CallInfo{Service: "com.foo.Svc", Group: "g1"})
	ci, ok := FromCallContext(ctx)
	if !ok || ci.Service != "com.foo.Svc" || ci.Group != "g1" {
		t.Fatalf("unexpected call info %+v", ci)
	}
	if _, ok := FromCallContext(context.Background()); ok {
		t.Fatalf("empty context must not carry call info")
	}
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(NewCallContext(context.Background(), CallInfo{RequestID: 7}))
	d := Detach(parent)
	cancel()
	if d.Err() != nil {
		t.Fatalf("detached context cancelled with parent")
	}
	if ci, ok := FromCallContext(AsCtx(d)); !ok || ci.RequestID != 7 {
		t.Fatalf("call info lost: %+v", ci)
	}
	if AsCtx(nil) == nil {
		t.Fatalf("nil context must map to background")
	}
}
