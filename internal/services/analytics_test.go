package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
)

func newTestAnalytics(t *testing.T) (*Analytics, *fakeLoader) {
	t.Helper()
	loader := &fakeLoader{data: models.Dataset{
		Transactions: sampleTransactions(),
		Columns:      models.Columns{Instagram: true},
	}}
	cache := NewTransactionCache(loader.Load, WithClock(newFakeClock().Now))
	return NewAnalytics(cache, slog.Default()), loader
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics(NewTransactionCache(nil), nil)
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.logger == nil {
		t.Error("logger should default")
	}
}

func TestAnalytics_Reports(t *testing.T) {
	a, loader := newTestAnalytics(t)
	ctx := context.Background()
	corgi := models.Filter{Breed: "Corgi"}

	overview, err := a.Overview(ctx, corgi)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if overview.TotalRevenue != 1450 || overview.TotalOrders != 3 {
		t.Errorf("Overview() = %+v", overview)
	}

	daily, err := a.Daily(ctx, models.Filter{})
	if err != nil || len(daily) != 3 {
		t.Errorf("Daily() = %v, %v", daily, err)
	}

	sizes, err := a.BySize(ctx, models.Filter{Channel: "Line"})
	if err != nil || len(sizes) != 2 || sizes[0].Size != "XS" {
		t.Errorf("BySize() = %+v, %v", sizes, err)
	}

	clv, err := a.LifetimeValue(ctx, models.Filter{})
	if err != nil || len(clv) != 3 || !clv[0].HasInstagram {
		t.Errorf("LifetimeValue() = %+v, %v", clv, err)
	}

	top, err := a.TopCustomers(ctx, models.Filter{}, 1)
	if err != nil || len(top) != 1 || top[0].Customer != "Alice" {
		t.Errorf("TopCustomers() = %+v, %v", top, err)
	}

	trends, err := a.MonthlyTrends(ctx, models.Filter{EndDate: "2024-01-31"})
	if err != nil || len(trends) != 1 {
		t.Errorf("MonthlyTrends() = %+v, %v", trends, err)
	}

	if got := loader.calls.Load(); got != 1 {
		t.Errorf("reports should share one cached load, loader called %d times", got)
	}
}

func TestAnalytics_FilterOptionsIgnoreFilters(t *testing.T) {
	a, _ := newTestAnalytics(t)
	opts, err := a.FilterOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Channels) != 3 {
		t.Errorf("Channels = %v", opts.Channels)
	}
}

func TestAnalytics_Dashboard(t *testing.T) {
	a, _ := newTestAnalytics(t)
	s, err := a.Dashboard(context.Background(), models.Filter{Size: "M"})
	if err != nil {
		t.Fatal(err)
	}
	if s.RecordsInView != 2 {
		t.Errorf("RecordsInView = %d, want 2", s.RecordsInView)
	}
	if s.Overview.TotalRevenue != 1250 {
		t.Errorf("Overview = %+v", s.Overview)
	}
	if len(s.Options.Sizes) != 3 {
		t.Errorf("filter options should cover the full dataset, got %v", s.Options.Sizes)
	}
	if !s.CacheInfo.Cached {
		t.Error("CacheInfo.Cached should be true")
	}
}

func TestAnalytics_Refresh(t *testing.T) {
	a, loader := newTestAnalytics(t)
	ctx := context.Background()

	if err := a.Warm(ctx); err != nil {
		t.Fatal(err)
	}
	info, err := a.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Cached || info.RecordCount != 5 {
		t.Errorf("Refresh() info = %+v", info)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestAnalytics_SourceFailure(t *testing.T) {
	loader := &fakeLoader{}
	loader.fail.Store(true)
	a := NewAnalytics(NewTransactionCache(func(ctx context.Context) (models.Dataset, error) {
		if _, err := loader.Load(ctx); err != nil {
			return models.Dataset{}, errors.Join(apperrors.ErrSourceUnavailable, err)
		}
		return models.Dataset{}, nil
	}), nil)

	_, err := a.Overview(context.Background(), models.Filter{})
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if a.CacheInfo().Cached {
		t.Error("nothing should be cached after a failed first load")
	}
}
