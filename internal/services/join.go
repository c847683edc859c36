package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/source"
)

var collectionPattern = regexp.MustCompile(`^WUUF-\d{3}`)

// ExtractCollection derives the collection code from a SKU: the WUUF-<nnn>
// prefix when present, else the first two hyphen-separated tokens, else the
// SKU itself.
func ExtractCollection(sku string) string {
	if sku == "" {
		return ""
	}
	if m := collectionPattern.FindString(sku); m != "" {
		return m
	}
	parts := strings.Split(sku, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return sku
}

type orderFields struct {
	date      *time.Time
	channel   *string
	customer  *string
	instagram *string
	phone     *string
}

type productFields struct {
	name  *string
	breed *string
}

// Join left-joins Order_Items to Orders on Order_ID and to Products on SKU.
// Every item row with a SKU yields exactly one transaction. Orders and
// Products rows with duplicate keys resolve to the first occurrence.
func Join(orders, items, products *models.RawTable) (models.Dataset, error) {
	if err := requireColumns(orders, models.ColOrderID); err != nil {
		return models.Dataset{}, err
	}
	if err := requireColumns(items, models.ColOrderID, models.ColSKU); err != nil {
		return models.Dataset{}, err
	}
	if err := requireColumns(products, models.ColSKU); err != nil {
		return models.Dataset{}, err
	}

	cols := models.Columns{
		Instagram: orders.HasColumn(models.ColInstagram),
		Phone:     orders.HasColumn(models.ColPhone),
	}

	orderIndex := make(map[string]orderFields)
	for _, row := range rowsOf(orders) {
		id := cellString(row[models.ColOrderID])
		if id == "" {
			continue
		}
		if _, seen := orderIndex[id]; seen {
			continue
		}
		orderIndex[id] = orderFields{
			date:      ParseOrderDate(row[models.ColOrderDate]),
			channel:   optionalString(row[models.ColChannel]),
			customer:  optionalString(row[models.ColCustomerName]),
			instagram: optionalString(row[models.ColInstagram]),
			phone:     optionalString(row[models.ColPhone]),
		}
	}

	productIndex := make(map[string]productFields)
	for _, row := range rowsOf(products) {
		sku := cellString(row[models.ColSKU])
		if sku == "" {
			continue
		}
		if _, seen := productIndex[sku]; seen {
			continue
		}
		productIndex[sku] = productFields{
			name:  optionalString(row[models.ColProductName]),
			breed: optionalString(row[models.ColDogBreed]),
		}
	}

	itemRows := rowsOf(items)
	txs := make([]models.Transaction, 0, len(itemRows))
	for _, row := range itemRows {
		sku := cellString(row[models.ColSKU])
		if sku == "" {
			continue
		}
		orderID := cellString(row[models.ColOrderID])
		order := orderIndex[orderID]
		product := productIndex[sku]

		tx := models.Transaction{
			OrderDate:    order.date,
			OrderID:      orderID,
			Channel:      order.channel,
			CustomerName: order.customer,
			SKU:          sku,
			Collection:   ExtractCollection(sku),
			ProductName:  product.name,
			DogBreed:     product.breed,
			ShirtColor:   optionalString(row[models.ColShirtColor]),
			Size:         optionalString(row[models.ColSize]),
			Qty:          CoerceQty(row[models.ColQty]),
			UnitPrice:    CoerceNumber(row[models.ColUnitPrice]),
			LineSubtotal: CoerceNumber(row[models.ColLineSubtotal]),
			COGS:         CoerceNumber(row[models.ColCOGS]),
			LineProfit:   CoerceNumber(row[models.ColLineProfit]),
		}
		if cols.Instagram {
			tx.Instagram = order.instagram
		}
		if cols.Phone {
			tx.Phone = order.phone
		}
		txs = append(txs, tx)
	}

	return models.Dataset{Transactions: txs, Columns: cols}, nil
}

// requireColumns fails when a table with a header lacks a join key. A table
// with no header at all is treated as empty.
func requireColumns(table *models.RawTable, cols ...string) error {
	if table == nil || len(table.Columns) == 0 {
		return nil
	}
	for _, col := range cols {
		if !table.HasColumn(col) {
			return fmt.Errorf("%w: %s table has no %s column", apperrors.ErrJoinFailure, table.Name, col)
		}
	}
	return nil
}

func rowsOf(table *models.RawTable) []models.RawRow {
	if table == nil {
		return nil
	}
	return table.Rows
}

func cellString(v any) string {
	if models.IsBlank(v) {
		return ""
	}
	return source.FormatCell(v)
}

func optionalString(v any) *string {
	s := cellString(v)
	if s == "" {
		return nil
	}
	return &s
}

// dateLayouts are tried in order. Month-first slash and dash forms come
// before their day-first counterparts, which only match when the first
// field cannot be a month.
var dateLayouts = []string{
	"2006-1-2",
	"2006-1-2 15:04:05",
	"2006-1-2T15:04:05",
	"2006-1-2 15:04",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/1/2",
	"2006/1/2 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"1-2-2006",
	"2-1-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
}

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseOrderDate parses a raw date cell. Unparseable or blank values give nil.
// Numeric cells are spreadsheet serial day numbers.
func ParseOrderDate(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		val = val.UTC()
		return &val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val <= 0 {
			return nil
		}
		d := sheetsEpoch.Add(time.Duration(val * float64(24*time.Hour))).Round(time.Second)
		return &d
	case string:
		t, ok := ParseDate(val)
		if !ok {
			return nil
		}
		return &t
	default:
		return nil
	}
}

// ParseDate parses a textual date in any of the accepted layouts. Dates
// carrying an offset are normalised to UTC so grouping and filtering agree.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CoerceNumber converts a raw cell to a float. Blank, non-numeric and
// non-finite values become 0.
func CoerceNumber(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case bool:
		if val {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CoerceQty converts a raw quantity cell to a non-negative whole number.
// Fractions are truncated.
func CoerceQty(v any) int {
	f := CoerceNumber(v)
	if f <= 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
