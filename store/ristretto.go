package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/analytics-core/model"
)

// RistrettoConfig configures a Ristretto-backed cache.
type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	DefaultTTL  time.Duration
}

// DefaultRistrettoConfig returns sensible defaults for a query cache.
func DefaultRistrettoConfig() *RistrettoConfig {
	return &RistrettoConfig{
		NumCounters: 1e5,
		MaxCost:     1 << 27, // in entries: every Set below uses cost 1
		BufferItems: 64,
		DefaultTTL:  2 * time.Minute,
	}
}

// CachedPurchaseStore wraps a PurchaseStore with a Ristretto read-through
// cache for TopItemsByPrice and ActiveUsersForWeek — the two queries the
// weekly batch job hits once per user per week, making them the hottest
// repeated read in the system.
type CachedPurchaseStore struct {
	inner PurchaseStore
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedPurchaseStore wraps inner with a cache built from cfg (or
// DefaultRistrettoConfig if cfg is nil).
func NewCachedPurchaseStore(inner PurchaseStore, cfg *RistrettoConfig) (*CachedPurchaseStore, error) {
	if cfg == nil {
		cfg = DefaultRistrettoConfig()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase cache: %w", err)
	}
	return &CachedPurchaseStore{inner: inner, cache: cache, ttl: cfg.DefaultTTL}, nil
}

func (c *CachedPurchaseStore) ListItems(ctx context.Context, q ListItemsQuery) ([]model.PurchaseItem, error) {
	return c.inner.ListItems(ctx, q)
}

func (c *CachedPurchaseStore) ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	return c.inner.ListItemsByCategory(ctx, userID, category, since, until)
}

func (c *CachedPurchaseStore) TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	key := fmt.Sprintf("top:%s:%d:%d", userID, weekStart.Unix(), n)
	if v, ok := c.cache.Get(key); ok {
		return v.([]model.PurchaseItem), nil
	}

	items, err := c.inner.TopItemsByPrice(ctx, userID, weekStart, n)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, items, 1, c.ttl)
	return items, nil
}

func (c *CachedPurchaseStore) ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error) {
	key := fmt.Sprintf("activeusers:%d", weekStart.Unix())
	if v, ok := c.cache.Get(key); ok {
		return v.([]string), nil
	}

	users, err := c.inner.ActiveUsersForWeek(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, users, 1, c.ttl)
	return users, nil
}

// RistrettoLease is a Ristretto-backed implementation of Lease: a lock
// entry expires on its own after ttl, so an abandoned job never wedges the
// next week's run.
type RistrettoLease struct {
	cache *ristretto.Cache
}

// NewRistrettoLease creates a lease store sized for a modest number of
// concurrent (user, week) keys.
func NewRistrettoLease() (*RistrettoLease, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lease cache: %w", err)
	}
	return &RistrettoLease{cache: cache}, nil
}

func (l *RistrettoLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if _, found := l.cache.Get(key); found {
		return false, nil
	}
	ok := l.cache.SetWithTTL(key, true, 1, ttl)
	l.cache.Wait()
	if !ok {
		return false, nil
	}
	// SetWithTTL can silently drop under memory pressure; confirm it landed.
	_, found := l.cache.Get(key)
	return found, nil
}

func (l *RistrettoLease) Release(ctx context.Context, key string) error {
	l.cache.Del(key)
	return nil
}
