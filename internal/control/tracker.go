package control

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/indexing/aggregate"
	"github.com/vietddude/ledgerscan/internal/indexing/collector"
	"github.com/vietddude/ledgerscan/internal/indexing/dedup"
	"github.com/vietddude/ledgerscan/internal/indexing/metrics"
	"github.com/vietddude/ledgerscan/internal/infra/chain"
	"github.com/vietddude/ledgerscan/internal/infra/storage"
	"github.com/vietddude/ledgerscan/internal/infra/storage/csvfile"
)

// priceSymbol keys the cached reference price.
const priceSymbol = "ethusd"

// PriceCache stores the reference price between runs.
type PriceCache interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
	SetPrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

// Tracker is the caller-facing entry point: balance, price, history,
// persistence and totals for one API.
type Tracker struct {
	adapter   chain.Adapter
	collector *collector.Collector
	cache     PriceCache
	log       *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPriceCache puts cache in front of FetchPrice.
func WithPriceCache(cache PriceCache) TrackerOption {
	return func(t *Tracker) { t.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTracker creates a Tracker over adapter.
func NewTracker(adapter chain.Adapter, pages collector.Config, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		adapter:   adapter,
		collector: collector.NewCollector(adapter, pages),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FetchBalance returns the balance of address in ether.
func (t *Tracker) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return t.adapter.GetBalance(ctx, address)
}

// FetchPrice returns the reference price, from the cache when it holds one.
func (t *Tracker) FetchPrice(ctx context.Context) (decimal.Decimal, error) {
	if t.cache != nil {
		price, found, err := t.cache.GetPrice(ctx, priceSymbol)
		if err != nil {
			t.log.Warn("Price cache read failed", "error", err)
		} else if found {
			t.log.Debug("Price served from cache", "price", price)
			return price, nil
		}
	}

	price, err := t.adapter.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if t.cache != nil {
		if err := t.cache.SetPrice(ctx, priceSymbol, price); err != nil {
			t.log.Warn("Price cache write failed", "error", err)
		}
	}
	return price, nil
}

// FetchHistory returns at most limit records for address. On failure the
// records collected before it are returned with the error.
func (t *Tracker) FetchHistory(ctx context.Context, address string, limit int) ([]domain.Record, error) {
	if err := domain.ValidateAddress(address); err != nil {
		return nil, &domain.OpError{Op: domain.OpHistory, Reason: "invalid_address", Err: err}
	}
	return t.collector.Collect(ctx, address, limit)
}

// Persist merges records into repo and returns what was written.
func (t *Tracker) Persist(ctx context.Context, records []domain.Record, repo storage.LedgerRepository) (dedup.MergeResult, error) {
	return dedup.NewStore(repo, dedup.WithLogger(t.log), dedup.WithBackend(backendOf(repo))).Merge(ctx, records)
}

// PersistCSV merges records into the CSV ledger at path.
func (t *Tracker) PersistCSV(ctx context.Context, records []domain.Record, path string) (dedup.MergeResult, error) {
	return t.Persist(ctx, records, csvfile.NewLedger(path))
}

// Aggregate totals records for address.
func (t *Tracker) Aggregate(records []domain.Record, address string) domain.Totals {
	return aggregate.Totals(records, address)
}

// SyncRequest describes one sync run.
type SyncRequest struct {
	Address string
	Limit   int
	Ledger  storage.LedgerRepository
	// Mirror is an optional second ledger, e.g. Postgres.
	Mirror storage.LedgerRepository
}

// SyncReport carries every result a sync produced. A failed step leaves its
// error set and the other results usable.
type SyncReport struct {
	Address    string
	Balance    decimal.Decimal
	BalanceErr error
	Price      decimal.Decimal
	PriceErr   error
	Records    []domain.Record
	HistoryErr error
	Totals     domain.Totals
	Persisted  dedup.MergeResult
	PersistErr error
	MirrorErr  error
	FinishedAt time.Time
}

// Err joins the step errors, nil when every step succeeded.
func (r SyncReport) Err() error {
	return errors.Join(r.BalanceErr, r.PriceErr, r.HistoryErr, r.PersistErr, r.MirrorErr)
}

// Sync fetches balance, history and price, totals the history and persists
// it. Steps run in that order; an abort stops the remaining ones.
func (t *Tracker) Sync(ctx context.Context, req SyncRequest) (rep SyncReport) {
	rep.Address = req.Address
	defer func() { rep.FinishedAt = time.Now() }()

	rep.Balance, rep.BalanceErr = t.FetchBalance(ctx, req.Address)
	if aborted(ctx) {
		return rep
	}

	rep.Records, rep.HistoryErr = t.FetchHistory(ctx, req.Address, req.Limit)
	if aborted(ctx) {
		return rep
	}

	rep.Price, rep.PriceErr = t.FetchPrice(ctx)
	if aborted(ctx) {
		return rep
	}

	rep.Totals = t.Aggregate(rep.Records, req.Address)

	if len(rep.Records) > 0 && req.Ledger != nil {
		rep.Persisted, rep.PersistErr = t.Persist(ctx, rep.Records, req.Ledger)
	}
	if len(rep.Records) > 0 && req.Mirror != nil {
		_, rep.MirrorErr = t.Persist(ctx, rep.Records, req.Mirror)
	}

	if rep.Err() == nil {
		metrics.LastSyncTimestamp.WithLabelValues(req.Address).SetToCurrentTime()
	}
	return rep
}

func aborted(ctx context.Context) bool {
	return ctx.Err() != nil
}

func backendOf(repo storage.LedgerRepository) string {
	switch repo.(type) {
	case *csvfile.Ledger:
		return "csv"
	default:
		return "mirror"
	}
}
