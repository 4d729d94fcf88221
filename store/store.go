// Package store provides the typed query surfaces the engines read — the
// purchase store and the weekly-report store — plus the decorators and
// implementations a deployment composes them from.
package store

import (
	"context"
	"time"

	"github.com/becomeliminal/analytics-core/model"
)

// ListItemsQuery parameterises PurchaseStore.ListItems. Since/Until are
// inclusive/exclusive bounds; nil means unbounded. Limit must be positive —
// the facade is responsible for rejecting out-of-range limits before they
// reach the store.
type ListItemsQuery struct {
	UserID string
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

// PurchaseStore is the typed read surface over item-level purchase records.
// Every implementation must filter status=active implicitly and must never
// string-concatenate caller input into query text.
type PurchaseStore interface {
	ListItems(ctx context.Context, q ListItemsQuery) ([]model.PurchaseItem, error)
	ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error)
	TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error)
	ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error)
}

// ReportStore is the typed read/write surface for weekly reports. All
// writes are idempotent under retry.
type ReportStore interface {
	Upsert(ctx context.Context, report *model.WeeklyReport) error
	Get(ctx context.Context, userID string, weekStart *time.Time) (*model.WeeklyReport, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error)
}

// Lease is a best-effort, process-level advisory lock preventing the same
// (user, week) batch job from running twice concurrently.
type Lease interface {
	// Acquire returns true if the caller now holds the lease, false if another
	// holder already does. The lease expires automatically after ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ErrNotFound is returned by ReportStore.Get when no report exists for the
// requested (user, week).
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "report not found" }

// ErrPersistConflict is returned by ReportStore.Upsert when a concurrent
// writer won the merge for the same (user, week). Callers re-read and retry
// rather than treating it as a store outage.
var ErrPersistConflict = persistConflictError{}

type persistConflictError struct{}

func (persistConflictError) Error() string { return "report upsert lost to a concurrent writer" }
