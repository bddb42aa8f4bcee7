package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/ledgerscan/internal/core/config"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/indexing/collector"
	"github.com/vietddude/ledgerscan/internal/indexing/health"
	"github.com/vietddude/ledgerscan/internal/infra/chain/etherscan"
	redisclient "github.com/vietddude/ledgerscan/internal/infra/redis"
	"github.com/vietddude/ledgerscan/internal/infra/rpc"
	"github.com/vietddude/ledgerscan/internal/infra/rpc/routing"
	"github.com/vietddude/ledgerscan/internal/infra/storage"
	"github.com/vietddude/ledgerscan/internal/infra/storage/csvfile"
	"github.com/vietddude/ledgerscan/internal/infra/storage/postgres"
)

// App holds the wired components for one CLI invocation.
type App struct {
	cfg      *config.AppConfig
	provider *rpc.HTTPProvider
	tracker  *Tracker
	db       *postgres.DB
	redis    *redisclient.Client
	log      *slog.Logger
}

// NewApp wires the HTTP session, dispatcher, adapter and tracker from cfg.
// Redis and Postgres are connected only when configured.
func NewApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	provider := rpc.NewHTTPProvider("etherscan", cfg.API.BaseURL, cfg.API.Timeout)
	dispatcher := rpc.NewDispatcher(provider,
		rpc.DispatcherConfig{Retry: cfg.Retry, MinInterval: cfg.API.MinInterval},
		routing.WithClassifier(routing.NewClassifier(cfg.Messages.Rules, routing.Severity(cfg.Messages.Unknown))),
		routing.WithLogger(log),
	)
	adapter := etherscan.NewAdapter(dispatcher, etherscan.Config{
		APIKey:  cfg.API.APIKey,
		ChainID: cfg.API.ChainID,
		Sort:    cfg.API.Sort,
	})

	app := &App{cfg: cfg, provider: provider, log: log}
	opts := []TrackerOption{WithLogger(log)}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			// The cache is optional; run without it.
			log.Warn("Redis unavailable, price cache disabled", "error", err)
		} else {
			app.redis = client
			opts = append(opts, WithPriceCache(client))
			log.Debug("Using Redis price cache")
		}
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			app.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		app.db = db
		log.Debug("Using PostgreSQL ledger mirror")
	}

	app.tracker = NewTracker(adapter, collector.Config{
		PageSize: cfg.API.PageSize,
		MaxPages: cfg.API.MaxPages,
	}, opts...)
	return app, nil
}

// Tracker returns the wired tracker.
func (a *App) Tracker() *Tracker {
	return a.tracker
}

// Provider returns the HTTP session, for health reporting.
func (a *App) Provider() *rpc.HTTPProvider {
	return a.provider
}

// Ledger returns the CSV ledger for address, at path when given or at the
// configured default name otherwise.
func (a *App) Ledger(address, path string) *csvfile.Ledger {
	if path == "" {
		path = a.cfg.Ledger.Path(address, time.Now())
	}
	return csvfile.NewLedger(path)
}

// Mirror returns the Postgres ledger for address, nil when no database is configured.
func (a *App) Mirror(address string) storage.LedgerRepository {
	if a.db == nil {
		return nil
	}
	return postgres.NewLedgerRepo(a.db, address)
}

// Close releases connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	_ = a.provider.Close()
}

// WatchConfig configures Watch.
type WatchConfig struct {
	Address  string
	Limit    int
	Interval time.Duration
	// LedgerPath pins the CSV file; empty uses the configured name per run.
	LedgerPath string
}

// Watch syncs the address every interval and serves health and metrics until
// ctx is done.
func (a *App) Watch(ctx context.Context, wc WatchConfig) error {
	if err := domain.ValidateAddress(wc.Address); err != nil {
		return err
	}
	if wc.Interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive", domain.ErrInvalidInput)
	}

	monitor := health.NewMonitor(a.provider, 3*wc.Interval)
	server := health.NewServer(monitor, a.cfg.Server.Port)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(shutdownCtx)
	}()

	a.log.Info("Watching address",
		"address", wc.Address,
		"interval", wc.Interval,
		"port", a.cfg.Server.Port,
	)

	ticker := time.NewTicker(wc.Interval)
	defer ticker.Stop()

	for {
		rep := a.tracker.Sync(ctx, SyncRequest{
			Address: wc.Address,
			Limit:   wc.Limit,
			Ledger:  a.Ledger(wc.Address, wc.LedgerPath),
			Mirror:  a.Mirror(wc.Address),
		})
		if ctx.Err() != nil {
			return nil
		}

		monitor.RecordSync(wc.Address, health.SyncState{
			At:       rep.FinishedAt,
			Written:  rep.Persisted.Written,
			Degraded: rep.Persisted.Degraded,
			Err:      rep.Err(),
		})
		LogReport(a.log, rep)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// LogReport logs a sync report: results at Info, failed steps at Error.
func LogReport(log *slog.Logger, rep SyncReport) {
	if rep.BalanceErr == nil {
		log.Info("Balance", "address", rep.Address, "eth", rep.Balance.StringFixed(6))
	} else {
		log.Error("Failed to fetch balance", "error", rep.BalanceErr)
	}

	if rep.HistoryErr == nil {
		log.Info("Fetched transactions", "count", len(rep.Records))
	} else {
		log.Error("Failed to fetch history", "kept", len(rep.Records), "error", rep.HistoryErr)
	}

	if rep.PriceErr == nil {
		log.Info("Price", "usd", rep.Price.StringFixed(2))
	} else {
		log.Error("Failed to fetch price", "error", rep.PriceErr)
	}

	if len(rep.Records) > 0 {
		log.Info("Totals",
			"received", rep.Totals.Received.StringFixed(4),
			"sent", rep.Totals.Sent.StringFixed(4),
		)
	}

	switch {
	case rep.PersistErr != nil:
		log.Error("Failed to persist ledger", "error", rep.PersistErr)
	case rep.Persisted.Location != "":
		log.Info("Ledger updated",
			"location", rep.Persisted.Location,
			"written", rep.Persisted.Written,
			"degraded", rep.Persisted.Degraded,
		)
	}
	if rep.MirrorErr != nil {
		log.Error("Failed to update ledger mirror", "error", rep.MirrorErr)
	}
}
