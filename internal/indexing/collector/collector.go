// Package collector accumulates a bounded transaction history by walking the
// API's pages in order.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/indexing/metrics"
	"github.com/vietddude/ledgerscan/internal/infra/chain"
)

// Config holds pagination settings.
type Config struct {
	// PageSize is the number of records requested per page
	PageSize int
	// MaxPages is the hard guard against APIs that never stop paginating
	MaxPages int
}

// DefaultConfig returns the Etherscan pagination settings.
func DefaultConfig() Config {
	return Config{
		PageSize: 100,
		MaxPages: 10_000,
	}
}

// Collector walks history pages sequentially. Pages are requested strictly in
// increasing order and never re-fetched.
type Collector struct {
	pager chain.HistoryPager
	cfg   Config
	log   *slog.Logger
}

// NewCollector creates a new collector.
func NewCollector(pager chain.HistoryPager, cfg Config) *Collector {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	return &Collector{
		pager: pager,
		cfg:   cfg,
		log:   slog.Default(),
	}
}

// Collect returns at most limit records for address.
//
// Collection stops at an empty page, a short page, or once limit records are
// held. On error the records gathered so far are returned alongside it.
func (c *Collector) Collect(ctx context.Context, address string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	acc := make([]domain.Record, 0, min(limit, c.cfg.PageSize))
	for page := 1; ; page++ {
		if page > c.cfg.MaxPages {
			c.log.Error("Pagination guard exceeded",
				"address", address,
				"max_pages", c.cfg.MaxPages,
				"records", len(acc),
			)
			return truncate(acc, limit), &domain.OpError{
				Op:     domain.OpHistory,
				Page:   page,
				Reason: "pagination_exhausted",
				Err: fmt.Errorf("%w: %w: more than %d pages",
					domain.ErrPaginationExhausted, domain.ErrFatal, c.cfg.MaxPages),
			}
		}

		recs, err := c.pager.GetHistoryPage(ctx, address, page, c.cfg.PageSize)
		if err != nil {
			return truncate(acc, limit), err
		}
		metrics.HistoryPagesFetched.Inc()
		acc = append(acc, recs...)

		if len(recs) < c.cfg.PageSize || len(acc) >= limit {
			c.log.Debug("History collected", "address", address, "pages", page, "records", len(acc))
			break
		}
	}

	return truncate(acc, limit), nil
}

func truncate(recs []domain.Record, limit int) []domain.Record {
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
