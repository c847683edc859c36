package services

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"wuuf-analytics/internal/models"
)

const isoDateTime = "2006-01-02T15:04:05"

// ApplyFilters returns the transactions matching every criterion set in f.
// Rows with no order date never match a date bound. An unparseable date
// bound is logged and ignored. The input slice is not modified.
func ApplyFilters(ctx context.Context, logger *slog.Logger, txs []models.Transaction, f models.Filter) []models.Transaction {
	if logger == nil {
		logger = slog.Default()
	}

	var start, end *time.Time
	if f.StartDate != "" {
		if t, ok := ParseDate(f.StartDate); ok {
			start = &t
		} else {
			logger.WarnContext(ctx, "invalid start_date format, ignoring", "start_date", f.StartDate)
		}
	}
	if f.EndDate != "" {
		if t, ok := ParseDate(f.EndDate); ok {
			t = endOfDay(t)
			end = &t
		} else {
			logger.WarnContext(ctx, "invalid end_date format, ignoring", "end_date", f.EndDate)
		}
	}

	out := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		if start != nil && (tx.OrderDate == nil || tx.OrderDate.Before(*start)) {
			continue
		}
		if end != nil && (tx.OrderDate == nil || tx.OrderDate.After(*end)) {
			continue
		}
		if f.Size != "" && !equals(tx.Size, f.Size) {
			continue
		}
		if f.Collection != "" && tx.Collection != f.Collection {
			continue
		}
		if f.Breed != "" && !equals(tx.DogBreed, f.Breed) {
			continue
		}
		if f.Channel != "" && !equals(tx.Channel, f.Channel) {
			continue
		}
		out = append(out, *tx)
	}
	return out
}

// endOfDay moves t to 23:59:59 of its calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1).Add(-time.Second)
}

func equals(v *string, want string) bool {
	return v != nil && *v == want
}

// FilterOptions lists the distinct values available for each filter.
func FilterOptions(txs []models.Transaction) models.FilterOptions {
	sizes := make(map[string]struct{})
	collections := make(map[string]struct{})
	breeds := make(map[string]struct{})
	channels := make(map[string]struct{})
	var minDate, maxDate *time.Time

	for i := range txs {
		tx := &txs[i]
		addOptional(sizes, tx.Size)
		collections[tx.Collection] = struct{}{}
		addOptional(breeds, tx.DogBreed)
		addOptional(channels, tx.Channel)
		if tx.OrderDate != nil {
			if minDate == nil || tx.OrderDate.Before(*minDate) {
				minDate = tx.OrderDate
			}
			if maxDate == nil || tx.OrderDate.After(*maxDate) {
				maxDate = tx.OrderDate
			}
		}
	}

	return models.FilterOptions{
		Sizes:       sortedKeys(sizes),
		Collections: sortedKeys(collections),
		Breeds:      sortedKeys(breeds),
		Channels:    sortedKeys(channels),
		DateRange: models.DateRange{
			MinDate: formatTime(minDate, isoDateTime),
			MaxDate: formatTime(maxDate, isoDateTime),
		},
	}
}

func addOptional(set map[string]struct{}, v *string) {
	if v != nil {
		set[*v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatTime(t *time.Time, layout string) *string {
	if t == nil {
		return nil
	}
	s := t.Format(layout)
	return &s
}
