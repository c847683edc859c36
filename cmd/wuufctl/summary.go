package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/services"
)

const summaryTopN = 5

func newSummaryCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Load and join the tables, then print headline figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := root.logger(cmd)

			loader, err := root.loader(ctx, logger)
			if err != nil {
				return err
			}
			data, err := services.SourceLoadFunc(loader)(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), data)
			return nil
		},
	}
}

func printSummary(w io.Writer, data models.Dataset) {
	txs := data.Transactions

	orders := make(map[string]struct{})
	customers := make(map[string]struct{})
	skus := make(map[string]struct{})
	for _, tx := range txs {
		if tx.OrderID != "" {
			orders[tx.OrderID] = struct{}{}
		}
		if tx.SKU != "" {
			skus[tx.SKU] = struct{}{}
		}
		if tx.CustomerName != nil {
			customers[*tx.CustomerName] = struct{}{}
		}
	}

	fmt.Fprintf(w, "Transactions:     %d\n", len(txs))
	fmt.Fprintf(w, "Unique orders:    %d\n", len(orders))
	fmt.Fprintf(w, "Unique customers: %d\n", len(customers))
	fmt.Fprintf(w, "Unique SKUs:      %d\n", len(skus))

	opts := services.FilterOptions(txs)
	if opts.DateRange.MinDate != nil && opts.DateRange.MaxDate != nil {
		fmt.Fprintf(w, "Date range:       %s to %s\n", *opts.DateRange.MinDate, *opts.DateRange.MaxDate)
	}

	o := services.SalesOverview(txs)
	fmt.Fprintf(w, "\nRevenue %.2f THB, profit %.2f THB, %d orders, %d units, AOV %.2f THB\n",
		o.TotalRevenue, o.TotalProfit, o.TotalOrders, o.TotalQuantity, o.AverageOrderValue)

	fmt.Fprintln(w, "\nTop collections:")
	for i, c := range services.SalesByCollection(txs) {
		if i == summaryTopN {
			break
		}
		fmt.Fprintf(w, "  %-16s %10.2f\n", c.Collection, c.Revenue)
	}

	fmt.Fprintln(w, "\nTop breeds:")
	for i, b := range services.SalesByBreed(txs) {
		if i == summaryTopN {
			break
		}
		fmt.Fprintf(w, "  %-16s %10.2f\n", b.Breed, b.Revenue)
	}

	fmt.Fprintln(w, "\nSales by size:")
	for _, s := range services.SalesBySize(txs) {
		fmt.Fprintf(w, "  %-16s %6d units %10.2f\n", s.Size, s.Quantity, s.Revenue)
	}
}
