package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/metrics"
	"wuuf-analytics/internal/models"
)

// BreakerLoader guards a remote loader with a circuit breaker so a failing
// spreadsheet API is not hammered on every cache miss.
type BreakerLoader struct {
	next   Loader
	cb     *gobreaker.CircuitBreaker[*models.RawTable]
	name   string
	logger *slog.Logger
}

// NewBreakerLoader opens after 5 consecutive failures and probes again after
// 30 seconds. Missing tables and cancelled requests do not count as failures.
func NewBreakerLoader(name string, next Loader, logger *slog.Logger) *BreakerLoader {
	if logger == nil {
		logger = slog.Default()
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	b := &BreakerLoader{next: next, name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[*models.RawTable](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var notFound *apperrors.TableNotFoundError
			return err == nil ||
				errors.As(err, &notFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return b
}

func (b *BreakerLoader) LoadTable(ctx context.Context, name string) (*models.RawTable, error) {
	table, err := b.cb.Execute(func() (*models.RawTable, error) {
		return b.next.LoadTable(ctx, name)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s circuit breaker rejected request: %v",
			apperrors.ErrSourceUnavailable, b.name, err)
	}
	return table, err
}

// SheetTitles lists the wrapped loader's tables when it can enumerate them.
func (b *BreakerLoader) SheetTitles(ctx context.Context) ([]string, error) {
	lister, ok := b.next.(TableLister)
	if !ok {
		return nil, fmt.Errorf("%s loader cannot list tables", b.name)
	}
	return lister.SheetTitles(ctx)
}

// State reports the breaker state name.
func (b *BreakerLoader) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
