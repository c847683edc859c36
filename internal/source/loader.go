// Package source loads the Orders, Order_Items and Products tables that feed
// the transaction pipeline.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"wuuf-analytics/internal/config"
	"wuuf-analytics/internal/metrics"
	"wuuf-analytics/internal/models"
)

// Loader returns one source table by name. Implementations must be safe for
// concurrent use and must strip incomplete template rows.
type Loader interface {
	LoadTable(ctx context.Context, name string) (*models.RawTable, error)
}

// Tables is one consistent load of the three source tables.
type Tables struct {
	Orders     *models.RawTable
	OrderItems *models.RawTable
	Products   *models.RawTable
}

// LoadTables fetches all source tables concurrently. The first failure
// cancels the remaining loads and is reported with the table it came from.
func LoadTables(ctx context.Context, loader Loader) (*Tables, error) {
	loaded := make([]*models.RawTable, len(models.SourceTables))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range models.SourceTables {
		g.Go(func() error {
			start := time.Now()
			table, err := loader.LoadTable(gctx, name)
			metrics.TableLoadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.TableLoadErrors.WithLabelValues(name).Inc()
				return fmt.Errorf("load %s sheet: %w", name, err)
			}
			metrics.TableRows.WithLabelValues(name).Set(float64(len(table.Rows)))
			loaded[i] = table
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Tables{
		Orders:     loaded[0],
		OrderItems: loaded[1],
		Products:   loaded[2],
	}, nil
}

// StripIncomplete drops rows without the table's key field. Spreadsheets
// carry pre-formatted empty template rows that would otherwise join as
// phantom line items.
func StripIncomplete(table *models.RawTable) *models.RawTable {
	if table == nil {
		return nil
	}
	key := models.KeyColumn(table.Name)
	kept := make([]models.RawRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		if !models.IsBlank(row[key]) {
			kept = append(kept, row)
		}
	}
	return &models.RawTable{Name: table.Name, Columns: table.Columns, Rows: kept}
}

// New builds the loader selected by cfg. Remote loaders are wrapped in a
// circuit breaker.
func New(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (Loader, error) {
	switch cfg.Kind {
	case config.SourceCSV:
		return NewCSVLoader(cfg.CSVDir), nil
	case config.SourceSheets:
		client, err := NewSheetsHTTPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sheets := NewSheetsLoader(cfg.SheetID, client, WithBaseURL(cfg.BaseURL))
		return NewBreakerLoader("google-sheets", sheets, logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
