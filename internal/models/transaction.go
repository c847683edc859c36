package models

import "time"

// Transaction is one line item of one order, enriched with its order and
// product attributes. Nil pointer fields mean the value was missing in the
// source or the left join found no match.
type Transaction struct {
	OrderDate    *time.Time `json:"order_date"`
	OrderID      string     `json:"order_id"`
	Channel      *string    `json:"channel"`
	CustomerName *string    `json:"customer_name"`
	Instagram    *string    `json:"instagram,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	SKU          string     `json:"sku"`
	Collection   string     `json:"collection"`
	ProductName  *string    `json:"product_name"`
	DogBreed     *string    `json:"dog_breed"`
	ShirtColor   *string    `json:"shirt_color"`
	Size         *string    `json:"size"`
	Qty          int        `json:"qty"`
	UnitPrice    float64    `json:"unit_price"`
	LineSubtotal float64    `json:"line_subtotal"`
	COGS         float64    `json:"cogs"`
	LineProfit   float64    `json:"line_profit"`
}

// Clone returns a deep copy so callers cannot reach shared pointer targets.
func (t Transaction) Clone() Transaction {
	c := t
	if t.OrderDate != nil {
		d := *t.OrderDate
		c.OrderDate = &d
	}
	c.Channel = cloneString(t.Channel)
	c.CustomerName = cloneString(t.CustomerName)
	c.Instagram = cloneString(t.Instagram)
	c.Phone = cloneString(t.Phone)
	c.ProductName = cloneString(t.ProductName)
	c.DogBreed = cloneString(t.DogBreed)
	c.ShirtColor = cloneString(t.ShirtColor)
	c.Size = cloneString(t.Size)
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Columns records which optional Orders columns the source provided.
type Columns struct {
	Instagram bool `json:"instagram"`
	Phone     bool `json:"phone"`
}

// Dataset is a joined transaction set together with its column availability.
type Dataset struct {
	Transactions []Transaction
	Columns      Columns
}

// Clone deep-copies the dataset.
func (d Dataset) Clone() Dataset {
	items := make([]Transaction, len(d.Transactions))
	for i := range d.Transactions {
		items[i] = d.Transactions[i].Clone()
	}
	return Dataset{Transactions: items, Columns: d.Columns}
}

// Len is the number of transactions.
func (d Dataset) Len() int {
	return len(d.Transactions)
}

// ExportColumns is the canonical ordered column set of a joined transaction
// table. Instagram and Phone are only emitted when the source has them.
func (c Columns) ExportColumns() []string {
	cols := []string{"Order_Date", "Order_ID", "Channel", "Customer_Name"}
	if c.Instagram {
		cols = append(cols, "Instagram")
	}
	if c.Phone {
		cols = append(cols, "Phone")
	}
	return append(cols,
		"SKU", "Collection", "Product_Name", "Dog_Breed",
		"Shirt_Color", "Size", "Qty", "Unit_Price_THB",
		"Line_Subtotal", "COGS_THB", "Line_Profit",
	)
}
