package engine

import (
	"context"
	"sync"
	"time"
)

// Guardrails gates capability runs per user. The web-search capability is
// rate-limited upstream; checking before each run keeps one user's
// weekly-alternatives traffic from exhausting the shared quota.
type Guardrails interface {
	// Check verifies whether the user is allowed to proceed.
	Check(ctx context.Context, userID string) (*GuardrailResult, error)

	// RecordSuccess records a successful run for the user.
	RecordSuccess(ctx context.Context, userID string)

	// RecordFailure records a failed run for the user.
	RecordFailure(ctx context.Context, userID string)
}

// GuardrailResult contains the result of a guardrail check.
type GuardrailResult struct {
	// Allowed indicates whether the run should proceed.
	Allowed bool

	// Warning explains a refusal, or warns while still allowing (e.g.
	// "approaching quota").
	Warning string

	// RemainingRequests is the number of runs remaining in the current
	// window; -1 means unlimited.
	RemainingRequests int

	// RetryAfter is set when Allowed is false, indicating when to retry
	// (Unix timestamp).
	RetryAfter int64
}

// NoOpGuardrails allows everything. Useful for development and testing.
type NoOpGuardrails struct{}

// Check always returns allowed.
func (n *NoOpGuardrails) Check(ctx context.Context, userID string) (*GuardrailResult, error) {
	return &GuardrailResult{
		Allowed:           true,
		RemainingRequests: -1,
	}, nil
}

// RecordSuccess is a no-op.
func (n *NoOpGuardrails) RecordSuccess(ctx context.Context, userID string) {}

// RecordFailure is a no-op.
func (n *NoOpGuardrails) RecordFailure(ctx context.Context, userID string) {}

// SearchQuota is an in-memory, fixed-window per-user run quota. A refused
// check surfaces upstream as a capability_quota error, which the batch job
// records without retrying.
type SearchQuota struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*quotaWindow
}

type quotaWindow struct {
	start time.Time
	count int
}

// NewSearchQuota allows up to limit runs per user per window.
func NewSearchQuota(limit int, window time.Duration) *SearchQuota {
	return &SearchQuota{
		limit:   limit,
		window:  window,
		windows: make(map[string]*quotaWindow),
	}
}

func (q *SearchQuota) Check(ctx context.Context, userID string) (*GuardrailResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	w, ok := q.windows[userID]
	if !ok || now.Sub(w.start) >= q.window {
		w = &quotaWindow{start: now}
		q.windows[userID] = w
	}

	if w.count >= q.limit {
		return &GuardrailResult{
			Allowed:    false,
			Warning:    "search quota exhausted for this user",
			RetryAfter: w.start.Add(q.window).Unix(),
		}, nil
	}

	w.count++
	return &GuardrailResult{
		Allowed:           true,
		RemainingRequests: q.limit - w.count,
	}, nil
}

// RecordSuccess is a no-op: the quota charges on Check, whether or not the
// run ultimately succeeds.
func (q *SearchQuota) RecordSuccess(ctx context.Context, userID string) {}

// RecordFailure is a no-op, same reasoning as RecordSuccess.
func (q *SearchQuota) RecordFailure(ctx context.Context, userID string) {}
