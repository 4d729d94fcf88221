package engine

import (
	"context"
	"testing"
	"time"
)

func TestSearchQuota_Check(t *testing.T) {
	q := NewSearchQuota(2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := q.Check(ctx, "u1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !result.Allowed {
			t.Fatalf("Check() #%d not allowed, want allowed", i+1)
		}
	}

	result, err := q.Check(ctx, "u1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Allowed {
		t.Error("third Check() allowed, want refused after quota of 2")
	}
	if result.RetryAfter == 0 {
		t.Error("refused Check() should set RetryAfter")
	}

	// Other users have their own window.
	other, err := q.Check(ctx, "u2")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !other.Allowed {
		t.Error("u2's first Check() refused, want per-user windows")
	}
}

func TestSearchQuota_WindowResets(t *testing.T) {
	q := NewSearchQuota(1, 10*time.Millisecond)
	ctx := context.Background()

	if r, _ := q.Check(ctx, "u1"); !r.Allowed {
		t.Fatal("first Check() refused, want allowed")
	}
	if r, _ := q.Check(ctx, "u1"); r.Allowed {
		t.Fatal("second Check() allowed, want refused within the window")
	}

	time.Sleep(15 * time.Millisecond)

	if r, _ := q.Check(ctx, "u1"); !r.Allowed {
		t.Error("Check() after the window refused, want a fresh window")
	}
}
