package source

import (
	"context"
	"errors"
	"slices"

	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
)

// TableLister is implemented by loaders that can enumerate their tables.
type TableLister interface {
	SheetTitles(ctx context.Context) ([]string, error)
}

// Diagnosis is the outcome of a source connectivity check.
type Diagnosis struct {
	Success         bool     `json:"success"`
	AvailableTables []string `json:"available_sheets"`
	RequiredTables  []string `json:"required_sheets"`
	MissingTables   []string `json:"missing_sheets,omitempty"`
	BreakerState    string   `json:"breaker_state,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Diagnose checks that the source answers and carries every required table.
// Loaders that cannot list their tables are probed by loading each one.
func Diagnose(ctx context.Context, loader Loader) Diagnosis {
	d := Diagnosis{RequiredTables: models.SourceTables}
	if b, ok := loader.(*BreakerLoader); ok {
		d.BreakerState = b.State()
	}

	if lister, ok := loader.(TableLister); ok {
		titles, err := lister.SheetTitles(ctx)
		if err != nil {
			d.Error = err.Error()
			return d
		}
		d.AvailableTables = titles
		for _, name := range models.SourceTables {
			if !slices.Contains(titles, name) {
				d.MissingTables = append(d.MissingTables, name)
			}
		}
	} else {
		for _, name := range models.SourceTables {
			_, err := loader.LoadTable(ctx, name)
			var notFound *apperrors.TableNotFoundError
			switch {
			case err == nil:
				d.AvailableTables = append(d.AvailableTables, name)
			case errors.As(err, &notFound):
				d.MissingTables = append(d.MissingTables, name)
			default:
				d.Error = err.Error()
				return d
			}
		}
	}

	if len(d.MissingTables) > 0 {
		d.Error = (&apperrors.TableNotFoundError{Table: d.MissingTables[0], Available: d.AvailableTables}).Error()
		return d
	}
	d.Success = true
	return d
}
