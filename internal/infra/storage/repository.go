package storage

import (
	"context"

	"github.com/vietddude/ledgerscan/internal/core/domain"
)

// LedgerRepository is a persisted, append-only transaction ledger keyed by
// transaction hash.
type LedgerRepository interface {
	// ExistingHashes returns the lowercased hashes already persisted.
	// A ledger that does not exist yet yields an empty set. A ledger that
	// cannot be parsed yields an error wrapping domain.ErrLedgerUnreadable.
	ExistingHashes(ctx context.Context) (map[string]struct{}, error)

	// Append adds records after the existing ones. Either every record
	// becomes visible or none does.
	Append(ctx context.Context, records []domain.Record) error

	// Location identifies the ledger in logs
	Location() string
}

// Diverter is implemented by ledgers that can redirect writes to a fresh
// sibling ledger, leaving an unreadable original untouched.
type Diverter interface {
	Divert(tag string) (LedgerRepository, error)
}

// RecordReader is implemented by ledgers that can return their full contents.
type RecordReader interface {
	Records(ctx context.Context) ([]domain.Record, error)
}
