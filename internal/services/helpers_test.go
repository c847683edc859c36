package services

import (
	"time"

	"wuuf-analytics/internal/models"
)

func strp(s string) *string { return &s }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func at(y int, m time.Month, d, h, min, s int) *time.Time {
	t := time.Date(y, m, d, h, min, s, 0, time.UTC)
	return &t
}

// sampleTransactions is a small dataset covering two months, three
// customers, several sizes and one undated row.
func sampleTransactions() []models.Transaction {
	return []models.Transaction{
		{
			OrderDate: day(2024, 1, 5), OrderID: "O1", Channel: strp("Instagram"), CustomerName: strp("Alice"),
			SKU: "WUUF-001-WH-M", Collection: "WUUF-001", ProductName: strp("Corgi Tee"), DogBreed: strp("Corgi"),
			ShirtColor: strp("White"), Size: strp("M"), Qty: 2, UnitPrice: 250, LineSubtotal: 500, COGS: 200, LineProfit: 300,
		},
		{
			OrderDate: day(2024, 1, 5), OrderID: "O1", Channel: strp("Instagram"), CustomerName: strp("Alice"),
			SKU: "WUUF-002-BK-L", Collection: "WUUF-002", ProductName: strp("Pug Tee"), DogBreed: strp("Pug"),
			ShirtColor: strp("Black"), Size: strp("L"), Qty: 1, UnitPrice: 300, LineSubtotal: 300, COGS: 120, LineProfit: 180,
		},
		{
			OrderDate: day(2024, 1, 20), OrderID: "O2", Channel: strp("Line"), CustomerName: strp("Bob"),
			SKU: "WUUF-001-BK-XS", Collection: "WUUF-001", ProductName: strp("Corgi Tee"), DogBreed: strp("Corgi"),
			ShirtColor: strp("Black"), Size: strp("XS"), Qty: 1, UnitPrice: 200, LineSubtotal: 200, COGS: 80, LineProfit: 120,
		},
		{
			OrderDate: day(2024, 2, 3), OrderID: "O3", Channel: strp("Line"), CustomerName: strp("Alice"),
			SKU: "WUUF-001-WH-M", Collection: "WUUF-001", ProductName: strp("Corgi Tee"), DogBreed: strp("Corgi"),
			ShirtColor: strp("White"), Size: strp("M"), Qty: 3, UnitPrice: 250, LineSubtotal: 750, COGS: 300, LineProfit: 450,
		},
		{
			OrderID: "O4", Channel: strp("Shopee"), CustomerName: strp("Carol"),
			SKU: "MISC-9", Collection: "MISC-9", Qty: 1, UnitPrice: 100, LineSubtotal: 100, COGS: 50, LineProfit: 50,
		},
	}
}
