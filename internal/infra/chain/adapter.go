package chain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
)

// Adapter is the boundary between the ledger pipeline and a specific
// ledger-query API.
type Adapter interface {
	// GetBalance returns the native balance of address, in whole units
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// GetPrice returns the current reference price of the native asset
	GetPrice(ctx context.Context) (decimal.Decimal, error)

	HistoryPager
}

// HistoryPager fetches one page of transaction history. Pages are 1-based.
type HistoryPager interface {
	GetHistoryPage(ctx context.Context, address string, page, pageSize int) ([]domain.Record, error)
}
