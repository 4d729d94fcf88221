package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/becomeliminal/analytics-core/model"
)

// MemoryPurchaseStore is an in-memory PurchaseStore. Suitable for tests and
// fixtures; not suitable for production (no persistence, single instance).
type MemoryPurchaseStore struct {
	mu    sync.RWMutex
	items map[string]model.PurchaseItem // item_id -> item
}

// NewMemoryPurchaseStore creates an empty in-memory purchase store.
func NewMemoryPurchaseStore() *MemoryPurchaseStore {
	return &MemoryPurchaseStore{items: make(map[string]model.PurchaseItem)}
}

// Put inserts or replaces an item. Only used by tests/fixtures and ingestion
// shims — the production contract is append-only from the caller's view.
func (m *MemoryPurchaseStore) Put(item model.PurchaseItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ItemID] = item
}

func (m *MemoryPurchaseStore) activeForUser(userID string) []model.PurchaseItem {
	out := make([]model.PurchaseItem, 0)
	for _, it := range m.items {
		if it.UserID == userID && it.Status == model.StatusActive {
			out = append(out, it)
		}
	}
	return out
}

func (m *MemoryPurchaseStore) ListItems(ctx context.Context, q ListItemsQuery) ([]model.PurchaseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.activeForUser(q.UserID)
	filtered := items[:0:0]
	for _, it := range items {
		if q.Since != nil && it.TS.Before(*q.Since) {
			continue
		}
		if q.Until != nil && !it.TS.Before(*q.Until) {
			continue
		}
		filtered = append(filtered, it)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].TS.After(filtered[j].TS) })
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, nil
}

func (m *MemoryPurchaseStore) ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.PurchaseItem, 0)
	for _, it := range m.activeForUser(userID) {
		if it.Category != category {
			continue
		}
		if since != nil && it.TS.Before(*since) {
			continue
		}
		if until != nil && !it.TS.Before(*until) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })
	return out, nil
}

func (m *MemoryPurchaseStore) TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	weekEnd := weekStart.AddDate(0, 0, 7)
	out := make([]model.PurchaseItem, 0)
	for _, it := range m.activeForUser(userID) {
		if it.TS.Before(weekStart) || !it.TS.Before(weekEnd) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Amount(), out[j].Amount()
		if ai != aj {
			return ai > aj
		}
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.After(out[j].TS)
		}
		return out[i].ItemID < out[j].ItemID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryPurchaseStore) ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	weekEnd := weekStart.AddDate(0, 0, 7)
	seen := make(map[string]struct{})
	for _, it := range m.items {
		if it.Status != model.StatusActive {
			continue
		}
		if it.TS.Before(weekStart) || !it.TS.Before(weekEnd) {
			continue
		}
		seen[it.UserID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// MemoryReportStore is an in-memory ReportStore. Suitable for tests and
// small single-instance deployments.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]map[time.Time]*model.WeeklyReport // userID -> weekStart -> report
}

// NewMemoryReportStore creates an empty in-memory report store.
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]map[time.Time]*model.WeeklyReport)}
}

func (m *MemoryReportStore) Upsert(ctx context.Context, report *model.WeeklyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byWeek, ok := m.reports[report.UserID]
	if !ok {
		byWeek = make(map[time.Time]*model.WeeklyReport)
		m.reports[report.UserID] = byWeek
	}

	key := report.WeekStart.UTC()
	now := time.Now().UTC()
	cp := *report
	if existing, ok := byWeek[key]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	byWeek[key] = &cp
	return nil
}

func (m *MemoryReportStore) Get(ctx context.Context, userID string, weekStart *time.Time) (*model.WeeklyReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byWeek, ok := m.reports[userID]
	if !ok || len(byWeek) == 0 {
		return nil, ErrNotFound
	}

	if weekStart != nil {
		r, ok := byWeek[weekStart.UTC()]
		if !ok {
			return nil, ErrNotFound
		}
		cp := *r
		return &cp, nil
	}

	var latest *model.WeeklyReport
	for _, r := range byWeek {
		if latest == nil || r.WeekStart.After(latest.WeekStart) {
			latest = r
		}
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryReportStore) ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byWeek := m.reports[userID]
	out := make([]model.WeeklyReport, 0, len(byWeek))
	for _, r := range byWeek {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
