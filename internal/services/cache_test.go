package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
	"wuuf-analytics/internal/source"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeLoader counts invocations and fails while fail is set.
type fakeLoader struct {
	calls atomic.Int32
	fail  atomic.Bool
	data  models.Dataset
}

func (l *fakeLoader) Load(ctx context.Context) (models.Dataset, error) {
	l.calls.Add(1)
	if l.fail.Load() {
		return models.Dataset{}, errors.New("load Orders sheet: spreadsheet offline")
	}
	return l.data.Clone(), nil
}

func newTestCache(l *fakeLoader, clock *fakeClock) *TransactionCache {
	return NewTransactionCache(l.Load, WithClock(clock.Now))
}

func TestTransactionCache_HitWithinTTL(t *testing.T) {
	clock := newFakeClock()
	loader := &fakeLoader{data: models.Dataset{Transactions: sampleTransactions()}}
	cache := newTestCache(loader, clock)
	ctx := context.Background()

	if _, err := cache.Load(ctx, false); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	clock.Advance(4 * time.Minute)
	data, err := cache.Load(ctx, false)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
	if data.Len() != len(sampleTransactions()) {
		t.Errorf("Len() = %d, want %d", data.Len(), len(sampleTransactions()))
	}
}

func TestTransactionCache_ReloadAfterTTL(t *testing.T) {
	clock := newFakeClock()
	loader := &fakeLoader{data: models.Dataset{Transactions: sampleTransactions()}}
	cache := newTestCache(loader, clock)
	ctx := context.Background()

	if _, err := cache.Load(ctx, false); err != nil {
		t.Fatal(err)
	}
	clock.Advance(DefaultCacheTTL)
	if _, err := cache.Load(ctx, false); err != nil {
		t.Fatal(err)
	}

	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestTransactionCache_ForceRefresh(t *testing.T) {
	clock := newFakeClock()
	loader := &fakeLoader{data: models.Dataset{Transactions: sampleTransactions()}}
	cache := newTestCache(loader, clock)
	ctx := context.Background()

	if _, err := cache.Load(ctx, false); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(ctx, true); err != nil {
		t.Fatal(err)
	}

	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestTransactionCache_StaleOnFailure(t *testing.T) {
	clock := newFakeClock()
	loader := &fakeLoader{data: models.Dataset{Transactions: sampleTransactions()}}
	cache := newTestCache(loader, clock)
	ctx := context.Background()

	if _, err := cache.Load(ctx, false); err != nil {
		t.Fatal(err)
	}
	loadedAt := *cache.Info().Timestamp

	loader.fail.Store(true)
	clock.Advance(10 * time.Minute)

	data, err := cache.Load(ctx, true)
	if err != nil {
		t.Fatalf("Load() with prior snapshot should not fail, got %v", err)
	}
	if data.Len() != len(sampleTransactions()) {
		t.Errorf("stale Len() = %d, want %d", data.Len(), len(sampleTransactions()))
	}
	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}

	info := cache.Info()
	if !info.Timestamp.Equal(loadedAt) {
		t.Errorf("snapshot timestamp changed after failed refresh: %v != %v", info.Timestamp, loadedAt)
	}
}

func TestTransactionCache_FailureWithoutSnapshot(t *testing.T) {
	loader := &fakeLoader{}
	loader.fail.Store(true)
	cache := newTestCache(loader, newFakeClock())

	_, err := cache.Load(context.Background(), false)
	if err == nil {
		t.Fatal("expected error when no snapshot exists")
	}
	if !strings.Contains(err.Error(), "Orders") {
		t.Errorf("error should name the failing table, got %q", err)
	}
	if cache.Info().Cached {
		t.Error("Info().Cached should be false")
	}
}

func TestTransactionCache_ReturnsCopies(t *testing.T) {
	loader := &fakeLoader{data: models.Dataset{Transactions: sampleTransactions()}}
	cache := newTestCache(loader, newFakeClock())
	ctx := context.Background()

	first, err := cache.Load(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	first.Transactions[0].OrderID = "mutated"
	*first.Transactions[0].Channel = "mutated"
	first.Transactions = first.Transactions[:1]

	second, err := cache.Load(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if second.Len() != len(sampleTransactions()) {
		t.Errorf("Len() = %d after caller truncation", second.Len())
	}
	if second.Transactions[0].OrderID != "O1" || *second.Transactions[0].Channel != "Instagram" {
		t.Errorf("snapshot was mutated through a returned copy: %+v", second.Transactions[0])
	}
}

func TestTransactionCache_Info(t *testing.T) {
	clock := newFakeClock()
	loader := &fakeLoader{data: models.Dataset{Transactions: sampleTransactions()}}
	cache := newTestCache(loader, clock)

	info := cache.Info()
	if info.Cached || info.Timestamp != nil || info.RecordCount != 0 || info.AgeSeconds != nil {
		t.Errorf("empty cache Info() = %+v", info)
	}

	if _, err := cache.Load(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)

	info = cache.Info()
	if !info.Cached {
		t.Error("Cached should be true")
	}
	if info.RecordCount != len(sampleTransactions()) {
		t.Errorf("RecordCount = %d", info.RecordCount)
	}
	if info.AgeSeconds == nil || *info.AgeSeconds != 30 {
		t.Errorf("AgeSeconds = %v, want 30", info.AgeSeconds)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("Info() must not load, loader called %d times", got)
	}
}

func TestTransactionCache_StaleWhileRefreshing(t *testing.T) {
	clock := newFakeClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	load := func(ctx context.Context) (models.Dataset, error) {
		if calls.Add(1) > 1 {
			close(entered)
			<-release
		}
		return models.Dataset{Transactions: sampleTransactions()}, nil
	}
	cache := NewTransactionCache(load, WithClock(clock.Now))
	ctx := context.Background()

	if _, err := cache.Load(ctx, false); err != nil {
		t.Fatal(err)
	}
	clock.Advance(DefaultCacheTTL + time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := cache.Load(ctx, true)
		done <- err
	}()
	<-entered

	data, err := cache.Load(ctx, false)
	if err != nil {
		t.Fatalf("reader during refresh got error %v", err)
	}
	if data.Len() != len(sampleTransactions()) {
		t.Errorf("reader during refresh got %d rows", data.Len())
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestSourceLoadFunc_CSV(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Orders.csv": "Order_ID,Order_Date,Channel,Customer_Name,Phone\n" +
			"O1,2024-01-05,Instagram,Alice,0812345678\n" +
			",,,,\n",
		"Order_Items.csv": "Order_ID,SKU,Shirt_Color,Size,Qty,Unit_Price_THB,Line_Subtotal,COGS_THB,Line_Profit\n" +
			"O1,WUUF-001-WH-M,White,M,2,250,500,200,300\n" +
			",,,,,,,,\n",
		"Products.csv": "SKU,Product_Name,Dog_Breed\n" +
			"WUUF-001-WH-M,Corgi Tee,Corgi\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	data, err := SourceLoadFunc(source.NewCSVLoader(dir))(context.Background())
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if data.Len() != 1 {
		t.Fatalf("expected 1 transaction, got %d", data.Len())
	}
	tx := data.Transactions[0]
	if tx.Phone == nil || *tx.Phone != "0812345678" {
		t.Errorf("phone should keep its leading zero, got %v", tx.Phone)
	}
	if !data.Columns.Phone || data.Columns.Instagram {
		t.Errorf("Columns = %+v", data.Columns)
	}
	if tx.DogBreed == nil || *tx.DogBreed != "Corgi" || tx.LineProfit != 300 {
		t.Errorf("unexpected transaction %+v", tx)
	}
}

func TestSourceLoadFunc_MissingTable(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Orders.csv", "Order_Items.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("Order_ID,SKU\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := SourceLoadFunc(source.NewCSVLoader(dir))(context.Background())
	var notFound *apperrors.TableNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TableNotFoundError, got %v", err)
	}
	if notFound.Table != models.TableProducts {
		t.Errorf("Table = %q, want Products", notFound.Table)
	}
	if !strings.Contains(err.Error(), "load Products sheet") {
		t.Errorf("error should name the stage, got %q", err)
	}
	if len(notFound.Available) != 2 {
		t.Errorf("Available = %v, want the two existing tables", notFound.Available)
	}
}
