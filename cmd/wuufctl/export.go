package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/services"
	"wuuf-analytics/internal/source"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the source tables and the joined transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := root.logger(cmd)

			loader, err := root.loader(ctx, logger)
			if err != nil {
				return err
			}
			tables, err := source.LoadTables(ctx, loader)
			if err != nil {
				return err
			}
			data, err := services.Join(tables.Orders, tables.OrderItems, tables.Products)
			if err != nil {
				return fmt.Errorf("join tables: %w", err)
			}

			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			for _, table := range []*models.RawTable{services.TextOrderDates(tables.Orders), tables.OrderItems, tables.Products, services.TransactionTable(data)} {
				path := filepath.Join(out, table.Name+".csv")
				if err := writeTable(path, table); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", path, len(table.Rows))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data", "Output directory")
	return cmd
}

func writeTable(path string, table *models.RawTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := source.WriteCSV(f, table); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
