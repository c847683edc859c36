package handlers

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"wuuf-analytics/internal/services"
	"wuuf-analytics/internal/source"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixtureTables = map[string]string{
	"Orders.csv": "Order_ID,Order_Date,Channel,Customer_Name,Instagram\n" +
		"O1,2024-01-05,Instagram,Alice,@alice\n" +
		"O2,2024-02-10,Facebook,Bob,\n" +
		"O3,2024-02-20,Instagram,Alice,@alice\n",
	"Order_Items.csv": "Order_ID,SKU,Shirt_Color,Size,Qty,Unit_Price_THB,Line_Subtotal,COGS_THB,Line_Profit\n" +
		"O1,WUUF-001-WH-M,White,M,2,250,500,200,300\n" +
		"O2,WUUF-002-BK-L,Black,L,1,300,300,120,180\n" +
		"O3,WUUF-001-WH-S,White,S,1,250,250,100,150\n",
	"Products.csv": "SKU,Product_Name,Dog_Breed\n" +
		"WUUF-001-WH-M,Corgi Tee,Corgi\n" +
		"WUUF-002-BK-L,Pug Tee,Pug\n" +
		"WUUF-001-WH-S,Corgi Tee,Corgi\n",
}

// fixtureDir writes the three source tables and returns their directory.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range fixtureTables {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func createTestAnalytics(t *testing.T, loader source.Loader) *services.Analytics {
	t.Helper()
	cache := services.NewTransactionCache(services.SourceLoadFunc(loader), services.WithCacheLogger(testLogger))
	return services.NewAnalytics(cache, testLogger)
}

func newTestAPI(t *testing.T) *APIHandlers {
	t.Helper()
	loader := source.NewCSVLoader(fixtureDir(t))
	return NewAPIHandlers(createTestAnalytics(t, loader), loader, testLogger)
}
