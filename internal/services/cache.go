package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"wuuf-analytics/internal/metrics"
	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/source"
)

const DefaultCacheTTL = 5 * time.Minute

// LoadFunc produces a freshly joined dataset.
type LoadFunc func(ctx context.Context) (models.Dataset, error)

// SourceLoadFunc loads the three source tables through loader and joins them.
func SourceLoadFunc(loader source.Loader) LoadFunc {
	return func(ctx context.Context) (models.Dataset, error) {
		tables, err := source.LoadTables(ctx, loader)
		if err != nil {
			return models.Dataset{}, err
		}
		data, err := Join(tables.Orders, tables.OrderItems, tables.Products)
		if err != nil {
			return models.Dataset{}, fmt.Errorf("join tables: %w", err)
		}
		return data, nil
	}
}

type snapshot struct {
	data     models.Dataset
	loadedAt time.Time
}

// TransactionCache holds the last successfully joined dataset for a TTL.
// Snapshots are replaced wholesale and every read returns a deep copy.
type TransactionCache struct {
	load   LoadFunc
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	current    atomic.Pointer[snapshot]
	refreshing atomic.Bool
	group      singleflight.Group
}

type CacheOption func(*TransactionCache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *TransactionCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *TransactionCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *TransactionCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewTransactionCache(load LoadFunc, opts ...CacheOption) *TransactionCache {
	c := &TransactionCache{
		load:   load,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached dataset, refreshing it when forced or expired.
// A failed refresh falls back to the previous snapshot when one exists.
// While a refresh is running, unforced callers holding an expired snapshot
// get that snapshot instead of waiting.
func (c *TransactionCache) Load(ctx context.Context, forceRefresh bool) (models.Dataset, error) {
	snap := c.current.Load()
	if !forceRefresh && snap != nil {
		if c.now().Sub(snap.loadedAt) < c.ttl {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return snap.data.Clone(), nil
		}
		if c.refreshing.Load() {
			metrics.CacheRequests.WithLabelValues("stale").Inc()
			return snap.data.Clone(), nil
		}
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	fresh, err := c.refresh(ctx)
	if err != nil {
		if prior := c.current.Load(); prior != nil {
			c.logger.WarnContext(ctx, "failed to refresh data, using cached data",
				"error", err,
				"cache_age_seconds", c.now().Sub(prior.loadedAt).Seconds(),
			)
			metrics.CacheRequests.WithLabelValues("stale").Inc()
			return prior.data.Clone(), nil
		}
		return models.Dataset{}, err
	}
	return fresh.data.Clone(), nil
}

// refresh runs at most one load at a time. The load is detached from the
// caller's cancellation so a disconnecting client does not abort it.
func (c *TransactionCache) refresh(ctx context.Context) (*snapshot, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		c.refreshing.Store(true)
		defer c.refreshing.Store(false)

		start := time.Now()
		data, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			metrics.CacheRefreshes.WithLabelValues("failure").Inc()
			return nil, err
		}

		snap := &snapshot{data: data, loadedAt: c.now()}
		c.current.Store(snap)
		metrics.CacheRefreshes.WithLabelValues("success").Inc()
		metrics.SnapshotRecords.Set(float64(data.Len()))
		c.logger.InfoContext(ctx, "transactions loaded",
			"records", data.Len(),
			"duration", time.Since(start),
		)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	}
}

// Info reports the snapshot status without loading.
func (c *TransactionCache) Info() models.CacheInfo {
	snap := c.current.Load()
	if snap == nil {
		return models.CacheInfo{}
	}
	ts := snap.loadedAt
	age := c.now().Sub(ts).Seconds()
	return models.CacheInfo{
		Cached:      true,
		Timestamp:   &ts,
		RecordCount: snap.data.Len(),
		AgeSeconds:  &age,
	}
}
