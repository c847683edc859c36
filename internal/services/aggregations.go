package services

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"wuuf-analytics/internal/models"
)

const (
	isoDate  = "2006-01-02"
	isoMonth = "2006-01"

	unrankedSize = 999
)

// Sales-by-size and size-distribution rank 4XL differently.
var (
	salesSizeRank = map[string]int{
		"XS": 1, "S": 2, "M": 3, "L": 4, "XL": 5, "XXL": 6, "2XL": 6, "3XL": 7,
	}
	distributionSizeRank = map[string]int{
		"XS": 1, "S": 2, "M": 3, "L": 4, "XL": 5, "XXL": 6, "2XL": 6, "3XL": 7, "4XL": 8,
	}
)

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// percent returns part/whole*100, or 0 when whole is zero.
func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// totals accumulates the sums shared by grouped sales reports.
type totals struct {
	revenue float64
	cost    float64
	profit  float64
	qty     int
	orders  map[string]struct{}
}

func newTotals() *totals {
	return &totals{orders: make(map[string]struct{})}
}

func (t *totals) add(tx *models.Transaction) {
	t.revenue += tx.LineSubtotal
	t.cost += tx.COGS
	t.profit += tx.LineProfit
	t.qty += tx.Qty
	if tx.OrderID != "" {
		t.orders[tx.OrderID] = struct{}{}
	}
}

func (t *totals) sales() models.SalesTotals {
	return models.SalesTotals{
		Revenue:  round2(t.revenue),
		Cost:     round2(t.cost),
		Profit:   round2(t.profit),
		Quantity: t.qty,
		Orders:   len(t.orders),
	}
}

// groupBy buckets transactions by key, skipping rows where key reports false.
// Keys are returned in ascending order.
func groupBy(txs []models.Transaction, key func(*models.Transaction) (string, bool)) ([]string, map[string]*totals) {
	groups := make(map[string]*totals)
	for i := range txs {
		k, ok := key(&txs[i])
		if !ok {
			continue
		}
		g, exists := groups[k]
		if !exists {
			g = newTotals()
			groups[k] = g
		}
		g.add(&txs[i])
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, groups
}

func optionalKey(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	return *v, true
}

func dateKey(layout string) func(*models.Transaction) (string, bool) {
	return func(tx *models.Transaction) (string, bool) {
		if tx.OrderDate == nil {
			return "", false
		}
		return tx.OrderDate.Format(layout), true
	}
}

func byRevenueDesc(a, b models.SalesTotals) int {
	return cmp.Compare(b.Revenue, a.Revenue)
}

func sizeOrder(rank map[string]int) func(a, b string) int {
	return func(a, b string) int {
		ra, ok := rank[a]
		if !ok {
			ra = unrankedSize
		}
		rb, ok := rank[b]
		if !ok {
			rb = unrankedSize
		}
		if c := cmp.Compare(ra, rb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}
}

// SalesOverview totals the set. Average order value is revenue per distinct
// order, or 0 without orders.
func SalesOverview(txs []models.Transaction) models.SalesOverview {
	t := newTotals()
	for i := range txs {
		t.add(&txs[i])
	}
	orders := len(t.orders)

	var aov float64
	if orders > 0 {
		aov = t.revenue / float64(orders)
	}
	return models.SalesOverview{
		TotalRevenue:      round2(t.revenue),
		TotalCost:         round2(t.cost),
		TotalProfit:       round2(t.profit),
		TotalOrders:       orders,
		TotalQuantity:     t.qty,
		AverageOrderValue: round2(aov),
	}
}

// DailySales groups by calendar date of order, ascending. Undated rows are
// skipped.
func DailySales(txs []models.Transaction) []models.DailySales {
	keys, groups := groupBy(txs, dateKey(isoDate))
	out := make([]models.DailySales, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.DailySales{Date: k, SalesTotals: groups[k].sales()})
	}
	return out
}

func SalesByCollection(txs []models.Transaction) []models.CollectionSales {
	keys, groups := groupBy(txs, func(tx *models.Transaction) (string, bool) {
		return tx.Collection, true
	})
	out := make([]models.CollectionSales, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.CollectionSales{Collection: k, SalesTotals: groups[k].sales()})
	}
	slices.SortStableFunc(out, func(a, b models.CollectionSales) int {
		return byRevenueDesc(a.SalesTotals, b.SalesTotals)
	})
	return out
}

func SalesByBreed(txs []models.Transaction) []models.BreedSales {
	keys, groups := groupBy(txs, func(tx *models.Transaction) (string, bool) {
		return optionalKey(tx.DogBreed)
	})
	out := make([]models.BreedSales, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.BreedSales{Breed: k, SalesTotals: groups[k].sales()})
	}
	slices.SortStableFunc(out, func(a, b models.BreedSales) int {
		return byRevenueDesc(a.SalesTotals, b.SalesTotals)
	})
	return out
}

// SalesBySize orders sizes XS through 3XL, then unknown sizes by name.
func SalesBySize(txs []models.Transaction) []models.SizeSales {
	keys, groups := groupBy(txs, func(tx *models.Transaction) (string, bool) {
		return optionalKey(tx.Size)
	})
	slices.SortFunc(keys, sizeOrder(salesSizeRank))

	out := make([]models.SizeSales, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.SizeSales{Size: k, SalesTotals: groups[k].sales()})
	}
	return out
}

// customer is the per-customer rollup behind the customer reports.
type customer struct {
	name      string
	revenue   float64
	profit    float64
	qty       int
	orders    map[string]struct{}
	first     *time.Time
	last      *time.Time
	instagram *string
	phone     *string

	// acquisition channel: the channel of the earliest dated row, or the
	// first known channel when no dated row has one.
	channel     *string
	channelDate *time.Time
	anyChannel  *string
}

func groupCustomers(txs []models.Transaction) []*customer {
	byName := make(map[string]*customer)
	for i := range txs {
		tx := &txs[i]
		if tx.CustomerName == nil {
			continue
		}
		c, ok := byName[*tx.CustomerName]
		if !ok {
			c = &customer{name: *tx.CustomerName, orders: make(map[string]struct{})}
			byName[c.name] = c
		}

		c.revenue += tx.LineSubtotal
		c.profit += tx.LineProfit
		c.qty += tx.Qty
		if tx.OrderID != "" {
			c.orders[tx.OrderID] = struct{}{}
		}
		if c.instagram == nil {
			c.instagram = tx.Instagram
		}
		if c.phone == nil {
			c.phone = tx.Phone
		}
		if c.anyChannel == nil {
			c.anyChannel = tx.Channel
		}

		if d := tx.OrderDate; d != nil {
			if c.first == nil || d.Before(*c.first) {
				c.first = d
			}
			if c.last == nil || d.After(*c.last) {
				c.last = d
			}
			if tx.Channel != nil && (c.channelDate == nil || d.Before(*c.channelDate)) {
				c.channel = tx.Channel
				c.channelDate = d
			}
		}
	}

	out := make([]*customer, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *customer) int {
		return cmp.Compare(a.name, b.name)
	})
	return out
}

func (c *customer) acquisitionChannel() *string {
	if c.channel != nil {
		return c.channel
	}
	return c.anyChannel
}

// CustomerRepeatRate counts customers by number of distinct orders.
func CustomerRepeatRate(txs []models.Transaction) models.RepeatRate {
	customers := groupCustomers(txs)
	if len(customers) == 0 {
		return models.RepeatRate{}
	}

	var repeat, orders int
	for _, c := range customers {
		n := len(c.orders)
		orders += n
		if n > 1 {
			repeat++
		}
	}
	total := len(customers)

	return models.RepeatRate{
		TotalCustomers:           total,
		RepeatCustomers:          repeat,
		NewCustomers:             total - repeat,
		RepeatRate:               round2(percent(float64(repeat), float64(total))),
		AverageOrdersPerCustomer: round2(float64(orders) / float64(total)),
	}
}

// CustomerLifetimeValue rolls up each customer, highest revenue first.
// Instagram and phone are included when cols says the source has them.
func CustomerLifetimeValue(txs []models.Transaction, cols models.Columns) []models.CustomerLifetimeValue {
	customers := groupCustomers(txs)
	out := make([]models.CustomerLifetimeValue, 0, len(customers))
	for _, c := range customers {
		orders := len(c.orders)
		var aov float64
		if orders > 0 {
			aov = c.revenue / float64(orders)
		}
		var lifetime int
		if c.first != nil && c.last != nil {
			lifetime = int(c.last.Sub(*c.first) / (24 * time.Hour))
		}

		clv := models.CustomerLifetimeValue{
			Customer:       c.name,
			TotalRevenue:   round2(c.revenue),
			TotalProfit:    round2(c.profit),
			TotalOrders:    orders,
			TotalQuantity:  c.qty,
			AvgOrderValue:  round2(aov),
			FirstOrderDate: formatTime(c.first, isoDateTime),
			LastOrderDate:  formatTime(c.last, isoDateTime),
			LifetimeDays:   lifetime,
			HasInstagram:   cols.Instagram,
			HasPhone:       cols.Phone,
		}
		if cols.Instagram {
			clv.Instagram = c.instagram
		}
		if cols.Phone {
			clv.Phone = c.phone
		}
		out = append(out, clv)
	}

	slices.SortStableFunc(out, func(a, b models.CustomerLifetimeValue) int {
		return cmp.Compare(b.TotalRevenue, a.TotalRevenue)
	})
	return out
}

// TopCustomers ranks customers by revenue and keeps the first limit.
func TopCustomers(txs []models.Transaction, limit int) []models.TopCustomer {
	if limit <= 0 {
		return []models.TopCustomer{}
	}
	customers := groupCustomers(txs)
	slices.SortStableFunc(customers, func(a, b *customer) int {
		return cmp.Compare(b.revenue, a.revenue)
	})
	if len(customers) > limit {
		customers = customers[:limit]
	}

	out := make([]models.TopCustomer, 0, len(customers))
	for i, c := range customers {
		out = append(out, models.TopCustomer{
			Rank:          i + 1,
			Customer:      c.name,
			TotalRevenue:  round2(c.revenue),
			TotalProfit:   round2(c.profit),
			TotalOrders:   len(c.orders),
			TotalQuantity: c.qty,
		})
	}
	return out
}

// CustomerAcquisition attributes each customer to the channel of their
// earliest order. Customers with no known channel are not counted.
func CustomerAcquisition(txs []models.Transaction) []models.ChannelAcquisition {
	counts := make(map[string]int)
	var total int
	for _, c := range groupCustomers(txs) {
		ch := c.acquisitionChannel()
		if ch == nil {
			continue
		}
		counts[*ch]++
		total++
	}

	out := make([]models.ChannelAcquisition, 0, len(counts))
	for ch, n := range counts {
		out = append(out, models.ChannelAcquisition{
			Channel:      ch,
			NewCustomers: n,
			Percentage:   round2(percent(float64(n), float64(total))),
		})
	}
	slices.SortFunc(out, func(a, b models.ChannelAcquisition) int {
		if c := cmp.Compare(b.NewCustomers, a.NewCustomers); c != 0 {
			return c
		}
		return cmp.Compare(a.Channel, b.Channel)
	})
	return out
}

// SizeDistribution is each size's share of total quantity, ordered XS
// through 4XL.
func SizeDistribution(txs []models.Transaction) []models.SizeShare {
	keys, groups := groupBy(txs, func(tx *models.Transaction) (string, bool) {
		return optionalKey(tx.Size)
	})
	slices.SortFunc(keys, sizeOrder(distributionSizeRank))

	var total int
	for _, g := range groups {
		total += g.qty
	}

	out := make([]models.SizeShare, 0, len(keys))
	for _, k := range keys {
		qty := groups[k].qty
		out = append(out, models.SizeShare{
			Size:       k,
			Quantity:   qty,
			Percentage: round2(percent(float64(qty), float64(total))),
		})
	}
	return out
}

// ColorPreferences breaks each breed's quantity down by shirt color. Rows
// missing either value are skipped.
func ColorPreferences(txs []models.Transaction) []models.ColorPreference {
	type pair struct{ breed, color string }
	type sums struct {
		qty     int
		revenue float64
	}

	pairs := make(map[pair]*sums)
	breedQty := make(map[string]int)
	for i := range txs {
		tx := &txs[i]
		if tx.DogBreed == nil || tx.ShirtColor == nil {
			continue
		}
		k := pair{*tx.DogBreed, *tx.ShirtColor}
		s, ok := pairs[k]
		if !ok {
			s = &sums{}
			pairs[k] = s
		}
		s.qty += tx.Qty
		s.revenue += tx.LineSubtotal
		breedQty[k.breed] += tx.Qty
	}

	out := make([]models.ColorPreference, 0, len(pairs))
	for k, s := range pairs {
		out = append(out, models.ColorPreference{
			Breed:      k.breed,
			Color:      k.color,
			Quantity:   s.qty,
			Revenue:    round2(s.revenue),
			Percentage: round2(percent(float64(s.qty), float64(breedQty[k.breed]))),
		})
	}
	slices.SortFunc(out, func(a, b models.ColorPreference) int {
		if c := cmp.Compare(a.Breed, b.Breed); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Color, b.Color)
	})
	return out
}

// MonthlyTrends groups dated rows by year-month. Growth compares each month
// with the previous listed month and is nil for the first month or when the
// previous value is zero.
func MonthlyTrends(txs []models.Transaction) []models.MonthlyTrend {
	customers := make(map[string]map[string]struct{})
	for i := range txs {
		tx := &txs[i]
		if tx.OrderDate == nil || tx.CustomerName == nil {
			continue
		}
		m := tx.OrderDate.Format(isoMonth)
		if customers[m] == nil {
			customers[m] = make(map[string]struct{})
		}
		customers[m][*tx.CustomerName] = struct{}{}
	}

	keys, groups := groupBy(txs, dateKey(isoMonth))
	out := make([]models.MonthlyTrend, 0, len(keys))
	var prev *totals
	for _, k := range keys {
		g := groups[k]
		s := g.sales()
		trend := models.MonthlyTrend{
			Month:     k,
			Revenue:   s.Revenue,
			Cost:      s.Cost,
			Profit:    s.Profit,
			Quantity:  s.Quantity,
			Orders:    s.Orders,
			Customers: len(customers[k]),
		}
		if prev != nil {
			trend.RevenueGrowth = growth(g.revenue, prev.revenue)
			trend.OrdersGrowth = growth(float64(len(g.orders)), float64(len(prev.orders)))
		}
		out = append(out, trend)
		prev = g
	}
	return out
}

func growth(curr, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	g := round2((curr - prev) / prev * 100)
	return &g
}
