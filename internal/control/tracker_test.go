package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/indexing/collector"
	"github.com/vietddude/ledgerscan/internal/infra/storage/memory"
)

const addr = "0x1111111111111111111111111111111111111111"

type fakeAdapter struct {
	balance    decimal.Decimal
	balanceErr error
	price      decimal.Decimal
	priceErr   error
	priceCalls int
	pages      [][]domain.Record
	pageErr    map[int]error
	onPage     func(page int)
}

func (f *fakeAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeAdapter) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	f.priceCalls++
	return f.price, f.priceErr
}

func (f *fakeAdapter) GetHistoryPage(ctx context.Context, address string, page, pageSize int) ([]domain.Record, error) {
	if f.onPage != nil {
		f.onPage(page)
	}
	if err := f.pageErr[page]; err != nil {
		return nil, err
	}
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

type mapCache struct {
	prices map[string]decimal.Decimal
}

func (c *mapCache) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	p, ok := c.prices[symbol]
	return p, ok, nil
}

func (c *mapCache) SetPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	c.prices[symbol] = price
	return nil
}

func page(from, n int) []domain.Record {
	out := make([]domain.Record, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, domain.Record{
			Hash:   fmt.Sprintf("0x%064x", i),
			From:   "0x2222222222222222222222222222222222222222",
			To:     addr,
			Value:  decimal.RequireFromString("0.01"),
			Status: domain.TxStatusSuccess,
		})
	}
	return out
}

func newTracker(a *fakeAdapter, opts ...TrackerOption) *Tracker {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewTracker(a, collector.Config{PageSize: 10, MaxPages: 100}, opts...)
}

func TestSync_AllStepsSucceed(t *testing.T) {
	a := &fakeAdapter{
		balance: decimal.RequireFromString("1.5"),
		price:   decimal.RequireFromString("3000"),
		pages:   [][]domain.Record{page(0, 10), page(10, 3)},
	}
	ledger := memory.NewLedger("sync")
	rep := newTracker(a).Sync(context.Background(), SyncRequest{Address: addr, Limit: 100, Ledger: ledger})

	if err := rep.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rep.Records) != 13 || rep.Persisted.Written != 13 || ledger.Len() != 13 {
		t.Errorf("unexpected report: records=%d written=%d ledger=%d", len(rep.Records), rep.Persisted.Written, ledger.Len())
	}
	if !rep.Totals.Received.Equal(decimal.RequireFromString("0.13")) {
		t.Errorf("unexpected received total %s", rep.Totals.Received)
	}
	if rep.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}
}

func TestSync_FailedStepKeepsOtherResults(t *testing.T) {
	priceErr := &domain.OpError{Op: domain.OpPrice, Reason: "api_error", Err: domain.ErrFatal}
	pageErr := &domain.OpError{Op: domain.OpHistory, Page: 2, Reason: "server_error", Err: domain.ErrTransient}
	a := &fakeAdapter{
		balance:  decimal.RequireFromString("2"),
		priceErr: priceErr,
		pages:    [][]domain.Record{page(0, 10), page(10, 10)},
		pageErr:  map[int]error{2: pageErr},
	}
	ledger := memory.NewLedger("partial")

	rep := newTracker(a).Sync(context.Background(), SyncRequest{Address: addr, Limit: 100, Ledger: ledger})

	if !rep.Balance.Equal(decimal.RequireFromString("2")) || rep.BalanceErr != nil {
		t.Errorf("balance lost: %s %v", rep.Balance, rep.BalanceErr)
	}
	if !errors.Is(rep.HistoryErr, domain.ErrTransient) || len(rep.Records) != 10 {
		t.Errorf("expected 10 partial records and a transient error, got %d %v", len(rep.Records), rep.HistoryErr)
	}
	if !errors.Is(rep.PriceErr, domain.ErrFatal) {
		t.Errorf("expected fatal price error, got %v", rep.PriceErr)
	}
	if rep.Persisted.Written != 10 {
		t.Errorf("expected partial history persisted, got %d", rep.Persisted.Written)
	}
	if err := rep.Err(); !errors.Is(err, priceErr) || !errors.Is(err, pageErr) {
		t.Errorf("expected joined errors, got %v", err)
	}
}

func TestSync_AbortStopsRemainingSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAdapter{
		pages:  [][]domain.Record{page(0, 10), page(10, 10)},
		onPage: func(int) { cancel() },
	}
	ledger := memory.NewLedger("abort")

	newTracker(a).Sync(ctx, SyncRequest{Address: addr, Limit: 100, Ledger: ledger})

	if a.priceCalls != 0 {
		t.Errorf("price fetched after abort")
	}
	if ledger.Len() != 0 {
		t.Errorf("ledger written after abort")
	}
}

func TestFetchPrice_UsesCache(t *testing.T) {
	a := &fakeAdapter{price: decimal.RequireFromString("3012.55")}
	cache := &mapCache{prices: map[string]decimal.Decimal{}}
	tr := newTracker(a, WithPriceCache(cache))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := tr.FetchPrice(ctx)
		if err != nil {
			t.Fatalf("FetchPrice: %v", err)
		}
		if !p.Equal(a.price) {
			t.Errorf("expected %s, got %s", a.price, p)
		}
	}
	if a.priceCalls != 1 {
		t.Errorf("expected one API call, got %d", a.priceCalls)
	}
}

func TestFetchHistory_InvalidAddress(t *testing.T) {
	a := &fakeAdapter{}
	called := false
	a.onPage = func(int) { called = true }

	_, err := newTracker(a).FetchHistory(context.Background(), "0x123", 10)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Error("expected no page requests")
	}
}

func TestPersistCSV_Idempotent(t *testing.T) {
	tr := newTracker(&fakeAdapter{})
	path := filepath.Join(t.TempDir(), "ledger.csv")
	recs := page(0, 5)
	ctx := context.Background()

	first, err := tr.PersistCSV(ctx, recs, path)
	if err != nil || first.Written != 5 {
		t.Fatalf("first persist: %+v %v", first, err)
	}
	second, err := tr.PersistCSV(ctx, recs, path)
	if err != nil || second.Written != 0 {
		t.Fatalf("second persist: %+v %v", second, err)
	}
}
