package services

import (
	"time"

	"wuuf-analytics/internal/models"
)

// TransactionTable flattens a joined dataset into a raw table with
// ExportColumns as its header, so it can be written like a source table.
// Dates carry a time of day only when it is not midnight.
func TransactionTable(d models.Dataset) *models.RawTable {
	table := &models.RawTable{
		Name:    "Transactions",
		Columns: d.Columns.ExportColumns(),
		Rows:    make([]models.RawRow, 0, d.Len()),
	}
	for _, tx := range d.Transactions {
		row := models.RawRow{
			models.ColOrderDate:    exportDate(tx.OrderDate),
			models.ColOrderID:      tx.OrderID,
			models.ColChannel:      exportString(tx.Channel),
			models.ColCustomerName: exportString(tx.CustomerName),
			models.ColSKU:          tx.SKU,
			"Collection":           tx.Collection,
			models.ColProductName:  exportString(tx.ProductName),
			models.ColDogBreed:     exportString(tx.DogBreed),
			models.ColShirtColor:   exportString(tx.ShirtColor),
			models.ColSize:         exportString(tx.Size),
			models.ColQty:          float64(tx.Qty),
			models.ColUnitPrice:    tx.UnitPrice,
			models.ColLineSubtotal: tx.LineSubtotal,
			models.ColCOGS:         tx.COGS,
			models.ColLineProfit:   tx.LineProfit,
		}
		if d.Columns.Instagram {
			row[models.ColInstagram] = exportString(tx.Instagram)
		}
		if d.Columns.Phone {
			row[models.ColPhone] = exportString(tx.Phone)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// TextOrderDates returns a copy of the Orders table whose numeric
// Order_Date cells are written as text dates, so an exported CSV parses
// back to the same dates. Other cells are shared with the input.
func TextOrderDates(orders *models.RawTable) *models.RawTable {
	if orders == nil {
		return nil
	}
	out := &models.RawTable{
		Name:    orders.Name,
		Columns: orders.Columns,
		Rows:    make([]models.RawRow, len(orders.Rows)),
	}
	for i, row := range orders.Rows {
		v, ok := row[models.ColOrderDate].(float64)
		if !ok {
			out.Rows[i] = row
			continue
		}
		converted := make(models.RawRow, len(row))
		for k, cell := range row {
			converted[k] = cell
		}
		converted[models.ColOrderDate] = exportDate(ParseOrderDate(v))
		out.Rows[i] = converted
	}
	return out
}

func exportString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func exportDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}
