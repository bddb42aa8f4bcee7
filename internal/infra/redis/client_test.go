package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPriceCache_Live(t *testing.T) {
	url := os.Getenv("LEDGERSCAN_TEST_REDIS")
	if url == "" {
		t.Skip("Skipping Redis test. Set LEDGERSCAN_TEST_REDIS to run.")
	}

	ctx := context.Background()
	c, err := NewClient(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	symbol := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = c.rdb.Del(context.Background(), priceKey(symbol)).Err() })

	if _, found, err := c.GetPrice(ctx, symbol); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	want := decimal.RequireFromString("3012.55")
	if err := c.SetPrice(ctx, symbol, want); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	got, found, err := c.GetPrice(ctx, symbol)
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}
