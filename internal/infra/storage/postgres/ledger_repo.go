package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/infra/storage"
)

// LedgerRepo mirrors one address's ledger into the ledger_records table.
type LedgerRepo struct {
	db      *DB
	address string
}

var (
	_ storage.LedgerRepository = (*LedgerRepo)(nil)
	_ storage.RecordReader     = (*LedgerRepo)(nil)
)

// NewLedgerRepo creates a repository scoped to address.
func NewLedgerRepo(db *DB, address string) *LedgerRepo {
	return &LedgerRepo{db: db, address: strings.ToLower(address)}
}

func (r *LedgerRepo) Location() string {
	return "postgres://ledger_records/" + r.address
}

// ExistingHashes loads every hash stored for the address.
func (r *LedgerRepo) ExistingHashes(ctx context.Context) (map[string]struct{}, error) {
	var hashes []string
	err := r.db.SelectContext(ctx, &hashes,
		`SELECT hash FROM ledger_records WHERE address = $1`, r.address)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger hashes: %w", err)
	}

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

// Append inserts records in one transaction. Rows already present are skipped.
func (r *LedgerRepo) Append(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO ledger_records (
			address, hash, block_number, block_time, from_address, to_address,
			value, gas, gas_price, gas_used, is_error
		) VALUES (
			:address, :hash, :block_number, :block_time, :from_address, :to_address,
			:value, :gas, :gas_price, :gas_used, :is_error
		)
		ON CONFLICT (address, hash) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, toRow(r.address, rec)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", rec.Hash, err)
		}
	}

	return tx.Commit()
}

// Records returns the mirrored records in insertion order.
func (r *LedgerRepo) Records(ctx context.Context) ([]domain.Record, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT address, hash, block_number, block_time, from_address, to_address,
		       value, gas, gas_price, gas_used, is_error
		FROM ledger_records
		WHERE address = $1
		ORDER BY id`, r.address)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger records: %w", err)
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type recordRow struct {
	Address     string    `db:"address"`
	Hash        string    `db:"hash"`
	BlockNumber int64     `db:"block_number"`
	BlockTime   time.Time `db:"block_time"`
	From        string    `db:"from_address"`
	To          string    `db:"to_address"`
	Value       string    `db:"value"`
	Gas         int64     `db:"gas"`
	GasPrice    string    `db:"gas_price"`
	GasUsed     int64     `db:"gas_used"`
	IsError     bool      `db:"is_error"`
}

func toRow(address string, rec domain.Record) recordRow {
	return recordRow{
		Address:     address,
		Hash:        strings.ToLower(rec.Hash),
		BlockNumber: int64(rec.BlockNumber),
		BlockTime:   rec.Timestamp.UTC(),
		From:        rec.From,
		To:          rec.To,
		Value:       rec.Value.String(),
		Gas:         int64(rec.Gas),
		GasPrice:    rec.GasPrice,
		GasUsed:     int64(rec.GasUsed),
		IsError:     rec.Failed(),
	}
}

func (row recordRow) toDomain() (domain.Record, error) {
	value, err := decimal.NewFromString(row.Value)
	if err != nil {
		return domain.Record{}, fmt.Errorf("ledger row %s value: %w", row.Hash, err)
	}
	status := domain.TxStatusSuccess
	if row.IsError {
		status = domain.TxStatusFailed
	}
	return domain.Record{
		Hash:        row.Hash,
		BlockNumber: uint64(row.BlockNumber),
		Timestamp:   row.BlockTime.UTC(),
		From:        row.From,
		To:          row.To,
		Value:       value,
		Gas:         uint64(row.Gas),
		GasPrice:    row.GasPrice,
		GasUsed:     uint64(row.GasUsed),
		Status:      status,
	}, nil
}
