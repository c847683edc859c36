package models

import "strings"

// Source table names.
const (
	TableOrders     = "Orders"
	TableOrderItems = "Order_Items"
	TableProducts   = "Products"
)

// SourceTables lists the tables the pipeline loads, in load order.
var SourceTables = []string{TableOrders, TableOrderItems, TableProducts}

// Source column headers.
const (
	ColOrderID      = "Order_ID"
	ColOrderDate    = "Order_Date"
	ColChannel      = "Channel"
	ColCustomerName = "Customer_Name"
	ColInstagram    = "Instagram"
	ColPhone        = "Phone"
	ColSKU          = "SKU"
	ColProductName  = "Product_Name"
	ColDogBreed     = "Dog_Breed"
	ColShirtColor   = "Shirt_Color"
	ColSize         = "Size"
	ColQty          = "Qty"
	ColUnitPrice    = "Unit_Price_THB"
	ColLineSubtotal = "Line_Subtotal"
	ColCOGS         = "COGS_THB"
	ColLineProfit   = "Line_Profit"
)

// RawRow is one spreadsheet row keyed by column header. Values are string,
// float64 or nil for blank cells.
type RawRow map[string]any

// RawTable is a loaded source table. Columns keeps the header order.
type RawTable struct {
	Name    string
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether the header row contains col.
func (t *RawTable) HasColumn(col string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// KeyColumn returns the column a row must carry to be kept for the table.
func KeyColumn(table string) string {
	if table == TableOrders {
		return ColOrderID
	}
	return ColSKU
}

// IsBlank reports whether a raw cell holds no usable value.
func IsBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
