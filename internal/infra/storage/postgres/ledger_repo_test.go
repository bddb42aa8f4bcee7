package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
)

// Set LEDGERSCAN_TEST_DB to a disposable database URL to run these.
func openTestDB(t *testing.T) *DB {
	url := os.Getenv("LEDGERSCAN_TEST_DB")
	if url == "" {
		t.Skip("Skipping Postgres test. Set LEDGERSCAN_TEST_DB to run.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestLedgerRepo_AppendIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	address := fmt.Sprintf("0x%040x", time.Now().UnixNano())
	repo := NewLedgerRepo(db, address)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM ledger_records WHERE address = $1`, repo.address)
	})

	recs := []domain.Record{
		{
			Hash: "0xaa", BlockNumber: 1, Timestamp: time.Unix(1700000000, 0).UTC(),
			From: address, To: "0xbb", Value: decimal.RequireFromString("1.5"),
			Gas: 21000, GasPrice: "1", GasUsed: 21000, Status: domain.TxStatusSuccess,
		},
		{
			Hash: "0xcc", BlockNumber: 2, Timestamp: time.Unix(1700000100, 0).UTC(),
			From: "0xbb", To: address, Value: decimal.RequireFromString("0.5"),
			Gas: 21000, GasPrice: "1", GasUsed: 21000, Status: domain.TxStatusFailed,
		},
	}

	if err := repo.Append(ctx, recs); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := repo.Append(ctx, recs); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	hashes, err := repo.ExistingHashes(ctx)
	if err != nil {
		t.Fatalf("ExistingHashes: %v", err)
	}
	if len(hashes) != 2 {
		t.Errorf("expected 2 hashes, got %d", len(hashes))
	}

	got, err := repo.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 2 || !got[0].Value.Equal(recs[0].Value) || !got[1].Failed() {
		t.Errorf("unexpected records: %+v", got)
	}
}
