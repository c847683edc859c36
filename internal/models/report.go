package models

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
)

type SalesOverview struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalCost         float64 `json:"total_cost"`
	TotalProfit       float64 `json:"total_profit"`
	TotalOrders       int     `json:"total_orders"`
	TotalQuantity     int     `json:"total_quantity"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// SalesTotals are the sums shared by every grouped sales report.
type SalesTotals struct {
	Revenue  float64 `json:"revenue"`
	Cost     float64 `json:"cost"`
	Profit   float64 `json:"profit"`
	Quantity int     `json:"quantity"`
	Orders   int     `json:"orders"`
}

type DailySales struct {
	Date string `json:"date"`
	SalesTotals
}

type CollectionSales struct {
	Collection string `json:"collection"`
	SalesTotals
}

type BreedSales struct {
	Breed string `json:"breed"`
	SalesTotals
}

type SizeSales struct {
	Size string `json:"size"`
	SalesTotals
}

type RepeatRate struct {
	TotalCustomers           int     `json:"total_customers"`
	RepeatCustomers          int     `json:"repeat_customers"`
	NewCustomers             int     `json:"new_customers"`
	RepeatRate               float64 `json:"repeat_rate"`
	AverageOrdersPerCustomer float64 `json:"average_orders_per_customer"`
}

// CustomerLifetimeValue is the CLV rollup of one customer. Instagram and
// Phone are serialized only when the source table has those columns, and as
// null when the customer never had a value.
type CustomerLifetimeValue struct {
	Customer       string  `json:"customer"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalProfit    float64 `json:"total_profit"`
	TotalOrders    int     `json:"total_orders"`
	TotalQuantity  int     `json:"total_quantity"`
	AvgOrderValue  float64 `json:"avg_order_value"`
	FirstOrderDate *string `json:"first_order_date"`
	LastOrderDate  *string `json:"last_order_date"`
	LifetimeDays   int     `json:"lifetime_days"`

	Instagram    *string `json:"-"`
	Phone        *string `json:"-"`
	HasInstagram bool    `json:"-"`
	HasPhone     bool    `json:"-"`
}

func (c CustomerLifetimeValue) MarshalJSON() ([]byte, error) {
	type base CustomerLifetimeValue
	b, err := json.Marshal(base(c))
	if err != nil || (!c.HasInstagram && !c.HasPhone) {
		return b, err
	}

	extra := make(map[string]*string, 2)
	if c.HasInstagram {
		extra["instagram"] = c.Instagram
	}
	if c.HasPhone {
		extra["phone"] = c.Phone
	}
	e, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(b) + len(e))
	buf.Write(b[:len(b)-1])
	buf.WriteByte(',')
	buf.Write(e[1:])
	return buf.Bytes(), nil
}

type TopCustomer struct {
	Rank          int     `json:"rank"`
	Customer      string  `json:"customer"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalProfit   float64 `json:"total_profit"`
	TotalOrders   int     `json:"total_orders"`
	TotalQuantity int     `json:"total_quantity"`
}

type ChannelAcquisition struct {
	Channel      string  `json:"channel"`
	NewCustomers int     `json:"new_customers"`
	Percentage   float64 `json:"percentage"`
}

type SizeShare struct {
	Size       string  `json:"size"`
	Quantity   int     `json:"quantity"`
	Percentage float64 `json:"percentage"`
}

type ColorPreference struct {
	Breed      string  `json:"breed"`
	Color      string  `json:"color"`
	Quantity   int     `json:"quantity"`
	Revenue    float64 `json:"revenue"`
	Percentage float64 `json:"percentage"`
}

// MonthlyTrend growth fields are nil for the first month and whenever the
// previous month's value was zero.
type MonthlyTrend struct {
	Month         string   `json:"month"`
	Revenue       float64  `json:"revenue"`
	Cost          float64  `json:"cost"`
	Profit        float64  `json:"profit"`
	Quantity      int      `json:"quantity"`
	Orders        int      `json:"orders"`
	Customers     int      `json:"customers"`
	RevenueGrowth *float64 `json:"revenue_growth"`
	OrdersGrowth  *float64 `json:"orders_growth"`
}

type DateRange struct {
	MinDate *string `json:"min_date"`
	MaxDate *string `json:"max_date"`
}

type FilterOptions struct {
	Sizes       []string  `json:"sizes"`
	Collections []string  `json:"collections"`
	Breeds      []string  `json:"breeds"`
	Channels    []string  `json:"channels"`
	DateRange   DateRange `json:"date_range"`
}

// CacheInfo describes the cached snapshot without triggering a load.
type CacheInfo struct {
	Cached      bool       `json:"cached"`
	Timestamp   *time.Time `json:"cache_timestamp"`
	RecordCount int        `json:"records_count"`
	AgeSeconds  *float64   `json:"cache_age_seconds,omitempty"`
}

// DashboardSummary bundles the reports shown on the dashboard landing page.
type DashboardSummary struct {
	Overview      SalesOverview     `json:"overview"`
	Monthly       []MonthlyTrend    `json:"monthly_trends"`
	Collections   []CollectionSales `json:"by_collection"`
	TopCustomers  []TopCustomer     `json:"top_customers"`
	SizeShares    []SizeShare       `json:"size_distribution"`
	Options       FilterOptions     `json:"filter_options"`
	CacheInfo     CacheInfo         `json:"cache_info"`
	RecordsInView int               `json:"records_in_view"`
}
