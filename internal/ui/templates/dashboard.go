package templates

import (
	"fmt"
	"strconv"

	"wuuf-analytics/internal/models"
)

//go:generate templ generate

func cacheStatus(info models.CacheInfo) string {
	if !info.Cached || info.Timestamp == nil {
		return "No data loaded"
	}
	return fmt.Sprintf("%d records cached at %s", info.RecordCount, info.Timestamp.Format("2006-01-02 15:04:05"))
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// growth formats a month-over-month change; the first month has none.
func growth(v *float64) string {
	if v == nil {
		return "-"
	}
	return percent(*v)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
