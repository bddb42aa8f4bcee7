// Package memory provides an in-process ledger for tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/infra/storage"
)

// Ledger keeps records in insertion order.
type Ledger struct {
	mu      sync.Mutex
	name    string
	records []domain.Record

	// Unreadable makes ExistingHashes fail as a corrupt file would.
	Unreadable bool
	// Diverted holds the sidecar ledgers handed out by Divert.
	Diverted []*Ledger
}

var (
	_ storage.LedgerRepository = (*Ledger)(nil)
	_ storage.Diverter         = (*Ledger)(nil)
	_ storage.RecordReader     = (*Ledger)(nil)
)

// NewLedger returns an empty ledger seeded with the given records.
func NewLedger(name string, seed ...domain.Record) *Ledger {
	return &Ledger{name: name, records: append([]domain.Record(nil), seed...)}
}

func (l *Ledger) Location() string {
	return "memory://" + l.name
}

func (l *Ledger) ExistingHashes(ctx context.Context) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Unreadable {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerUnreadable, l.name)
	}
	hashes := make(map[string]struct{}, len(l.records))
	for _, r := range l.records {
		hashes[strings.ToLower(r.Hash)] = struct{}{}
	}
	return hashes, nil
}

func (l *Ledger) Append(ctx context.Context, records []domain.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
	return nil
}

func (l *Ledger) Records(ctx context.Context) ([]domain.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Record(nil), l.records...), nil
}

// Len returns the number of stored records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Ledger) Divert(tag string) (storage.LedgerRepository, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	side := NewLedger(l.name + "." + tag)
	l.Diverted = append(l.Diverted, side)
	return side, nil
}
