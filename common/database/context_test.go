package database

import (
	"context"
	"testing"
	"time"
)

func TestQueryContext_HasDeadline(t *testing.T) {
	ctx, cancel := QueryContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline")
	}
	if remaining := time.Until(deadline); remaining > DefaultQueryTimeout {
		t.Errorf("deadline too far: %v", remaining)
	}
}

func TestDetachedWriteContext_SurvivesParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := DetachedWriteContext(parent)
	defer cancel()

	cancelParent()

	if err := ctx.Err(); err != nil {
		t.Fatalf("detached context cancelled with parent: %v", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected deadline on detached context")
	}
}
