package services

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/observability"
)

// DefaultTopCustomers is the top-customers limit when none is given.
const DefaultTopCustomers = 10

// Analytics serves reports: each call loads the cached dataset, applies the
// filter and runs one aggregation.
type Analytics struct {
	cache  *TransactionCache
	logger *slog.Logger
}

func NewAnalytics(cache *TransactionCache, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{cache: cache, logger: logger}
}

// view is one filtered read of the snapshot.
type view struct {
	txs  []models.Transaction
	cols models.Columns
}

func (a *Analytics) view(ctx context.Context, f models.Filter) (view, error) {
	data, err := a.cache.Load(ctx, false)
	if err != nil {
		return view{}, err
	}
	txs := data.Transactions
	if !f.IsZero() {
		txs = ApplyFilters(ctx, a.logger, txs, f)
	}
	return view{txs: txs, cols: data.Columns}, nil
}

func report[T any](ctx context.Context, a *Analytics, name string, f models.Filter, fn func(view) T) (T, error) {
	ctx, span := observability.StartSpan(ctx, "report."+name)
	defer span.End(ctx, a.logger)

	v, err := a.view(ctx, f)
	if err != nil {
		span.SetError(err)
		var zero T
		return zero, err
	}
	span.SetTag("rows", strconv.Itoa(len(v.txs)))
	return fn(v), nil
}

func (a *Analytics) Overview(ctx context.Context, f models.Filter) (models.SalesOverview, error) {
	return report(ctx, a, "overview", f, func(v view) models.SalesOverview {
		return SalesOverview(v.txs)
	})
}

func (a *Analytics) Daily(ctx context.Context, f models.Filter) ([]models.DailySales, error) {
	return report(ctx, a, "daily", f, func(v view) []models.DailySales {
		return DailySales(v.txs)
	})
}

func (a *Analytics) ByCollection(ctx context.Context, f models.Filter) ([]models.CollectionSales, error) {
	return report(ctx, a, "by_collection", f, func(v view) []models.CollectionSales {
		return SalesByCollection(v.txs)
	})
}

func (a *Analytics) ByBreed(ctx context.Context, f models.Filter) ([]models.BreedSales, error) {
	return report(ctx, a, "by_breed", f, func(v view) []models.BreedSales {
		return SalesByBreed(v.txs)
	})
}

func (a *Analytics) BySize(ctx context.Context, f models.Filter) ([]models.SizeSales, error) {
	return report(ctx, a, "by_size", f, func(v view) []models.SizeSales {
		return SalesBySize(v.txs)
	})
}

func (a *Analytics) RepeatRate(ctx context.Context, f models.Filter) (models.RepeatRate, error) {
	return report(ctx, a, "repeat_rate", f, func(v view) models.RepeatRate {
		return CustomerRepeatRate(v.txs)
	})
}

func (a *Analytics) LifetimeValue(ctx context.Context, f models.Filter) ([]models.CustomerLifetimeValue, error) {
	return report(ctx, a, "lifetime_value", f, func(v view) []models.CustomerLifetimeValue {
		return CustomerLifetimeValue(v.txs, v.cols)
	})
}

func (a *Analytics) TopCustomers(ctx context.Context, f models.Filter, limit int) ([]models.TopCustomer, error) {
	return report(ctx, a, "top_customers", f, func(v view) []models.TopCustomer {
		return TopCustomers(v.txs, limit)
	})
}

func (a *Analytics) Acquisition(ctx context.Context, f models.Filter) ([]models.ChannelAcquisition, error) {
	return report(ctx, a, "acquisition", f, func(v view) []models.ChannelAcquisition {
		return CustomerAcquisition(v.txs)
	})
}

func (a *Analytics) SizeDistribution(ctx context.Context, f models.Filter) ([]models.SizeShare, error) {
	return report(ctx, a, "size_distribution", f, func(v view) []models.SizeShare {
		return SizeDistribution(v.txs)
	})
}

func (a *Analytics) ColorPreferences(ctx context.Context, f models.Filter) ([]models.ColorPreference, error) {
	return report(ctx, a, "color_preferences", f, func(v view) []models.ColorPreference {
		return ColorPreferences(v.txs)
	})
}

func (a *Analytics) MonthlyTrends(ctx context.Context, f models.Filter) ([]models.MonthlyTrend, error) {
	return report(ctx, a, "monthly_trends", f, func(v view) []models.MonthlyTrend {
		return MonthlyTrends(v.txs)
	})
}

// FilterOptions lists filter values over the unfiltered dataset.
func (a *Analytics) FilterOptions(ctx context.Context) (models.FilterOptions, error) {
	return report(ctx, a, "filter_options", models.Filter{}, func(v view) models.FilterOptions {
		return FilterOptions(v.txs)
	})
}

// Dashboard computes the landing page reports concurrently over one
// filtered view.
func (a *Analytics) Dashboard(ctx context.Context, f models.Filter) (models.DashboardSummary, error) {
	ctx, span := observability.StartSpan(ctx, "report.dashboard")
	defer span.End(ctx, a.logger)

	data, err := a.cache.Load(ctx, false)
	if err != nil {
		span.SetError(err)
		return models.DashboardSummary{}, err
	}
	txs := ApplyFilters(ctx, a.logger, data.Transactions, f)

	var s models.DashboardSummary
	var g errgroup.Group
	g.Go(func() error { s.Overview = SalesOverview(txs); return nil })
	g.Go(func() error { s.Monthly = MonthlyTrends(txs); return nil })
	g.Go(func() error { s.Collections = SalesByCollection(txs); return nil })
	g.Go(func() error { s.TopCustomers = TopCustomers(txs, 5); return nil })
	g.Go(func() error { s.SizeShares = SizeDistribution(txs); return nil })
	g.Go(func() error { s.Options = FilterOptions(data.Transactions); return nil })
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return models.DashboardSummary{}, err
	}

	s.CacheInfo = a.cache.Info()
	s.RecordsInView = len(txs)
	span.SetTag("rows", strconv.Itoa(len(txs)))
	return s, nil
}

// Refresh forces a reload of the source tables. When the reload fails but a
// previous snapshot exists, the stale snapshot stays in place.
func (a *Analytics) Refresh(ctx context.Context) (models.CacheInfo, error) {
	ctx, span := observability.StartSpan(ctx, "cache.refresh")
	defer span.End(ctx, a.logger)

	if _, err := a.cache.Load(ctx, true); err != nil {
		span.SetError(err)
		return models.CacheInfo{}, err
	}
	return a.cache.Info(), nil
}

// Warm loads the snapshot once, typically at startup.
func (a *Analytics) Warm(ctx context.Context) error {
	_, err := a.cache.Load(ctx, false)
	return err
}

func (a *Analytics) CacheInfo() models.CacheInfo {
	return a.cache.Info()
}
