// Package dedup merges freshly fetched records into a persisted ledger,
// appending only records whose hash the ledger does not hold yet.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/indexing/metrics"
	"github.com/vietddude/ledgerscan/internal/infra/storage"
)

// MergeResult reports what a merge did.
type MergeResult struct {
	Written  int
	Location string
	// Degraded is set when the ledger could not be read and deduplication
	// was skipped for this run.
	Degraded bool
}

// Store owns one persisted ledger.
type Store struct {
	repo    storage.LedgerRepository
	backend string
	logger  *slog.Logger
	newTag  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBackend labels the ledger records metric.
func WithBackend(name string) Option {
	return func(s *Store) { s.backend = name }
}

// NewStore creates a dedup store over repo.
func NewStore(repo storage.LedgerRepository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		backend: "csv",
		logger:  slog.Default(),
		newTag:  func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Merge appends the records not yet present in the ledger.
func (s *Store) Merge(ctx context.Context, records []domain.Record) (MergeResult, error) {
	res := MergeResult{Location: s.repo.Location()}

	existing, err := s.repo.ExistingHashes(ctx)
	target := s.repo
	if err != nil {
		if !errors.Is(err, domain.ErrLedgerUnreadable) {
			return res, persistErr(err)
		}
		target, err = s.degrade(err)
		if err != nil {
			return res, persistErr(err)
		}
		existing = nil
		res.Degraded = true
		res.Location = target.Location()
	}

	fresh := Delta(records, existing)
	if len(fresh) == 0 {
		return res, nil
	}

	if err := target.Append(ctx, fresh); err != nil {
		return res, persistErr(err)
	}
	res.Written = len(fresh)
	metrics.LedgerRecordsWritten.WithLabelValues(s.backend).Add(float64(len(fresh)))
	return res, nil
}

// degrade leaves an unreadable ledger alone and picks where new records go.
func (s *Store) degrade(cause error) (storage.LedgerRepository, error) {
	metrics.LedgerDedupDegraded.Inc()

	d, ok := s.repo.(storage.Diverter)
	if !ok {
		s.logger.Warn("Ledger unreadable, deduplication disabled",
			"location", s.repo.Location(),
			"error", cause,
		)
		return s.repo, nil
	}

	side, err := d.Divert(s.newTag())
	if err != nil {
		return nil, fmt.Errorf("divert unreadable ledger: %w", err)
	}
	s.logger.Warn("Ledger unreadable, deduplication disabled",
		"location", s.repo.Location(),
		"writing_to", side.Location(),
		"error", cause,
	)
	return side, nil
}

// Delta returns the records whose hash is neither in existing nor earlier in
// records, preserving input order. Records without a hash are dropped.
func Delta(records []domain.Record, existing map[string]struct{}) []domain.Record {
	seen := make(map[string]struct{}, len(records))
	var out []domain.Record
	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.Hash))
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func persistErr(err error) error {
	return &domain.OpError{Op: domain.OpPersist, Reason: "storage", Err: err}
}
