package csvfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
)

func record(i int) domain.Record {
	return domain.Record{
		Hash:        fmt.Sprintf("0x%064x", i),
		BlockNumber: uint64(1000 + i),
		Timestamp:   time.Unix(int64(1700000000+i), 0).UTC(),
		From:        "0x1111111111111111111111111111111111111111",
		To:          "0x2222222222222222222222222222222222222222",
		Value:       decimal.RequireFromString("0.25"),
		Gas:         21000,
		GasPrice:    "1000000000",
		GasUsed:     21000,
		Status:      domain.TxStatusSuccess,
	}
}

func TestLedger_MissingFileIsEmpty(t *testing.T) {
	l := NewLedger(filepath.Join(t.TempDir(), "none.csv"))

	hashes, err := l.ExistingHashes(context.Background())
	if err != nil {
		t.Fatalf("ExistingHashes: %v", err)
	}
	if len(hashes) != 0 {
		t.Errorf("expected no hashes, got %d", len(hashes))
	}
}

func TestLedger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.csv")
	l := NewLedger(path)

	failed := record(2)
	failed.Status = domain.TxStatusFailed
	in := []domain.Record{record(1), failed, record(3)}
	if err := l.Append(ctx, in); err != nil {
		t.Fatalf("Append: %v", err)
	}

	hashes, err := l.ExistingHashes(ctx)
	if err != nil {
		t.Fatalf("ExistingHashes: %v", err)
	}
	for _, r := range in {
		if _, ok := hashes[r.Hash]; !ok {
			t.Errorf("hash %s not read back", r.Hash)
		}
	}

	out, err := l.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Hash != in[i].Hash || !out[i].Value.Equal(in[i].Value) ||
			!out[i].Timestamp.Equal(in[i].Timestamp) || out[i].Status != in[i].Status {
			t.Errorf("record %d: got %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestLedger_AppendKeepsExistingBytes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := NewLedger(path)

	if err := l.Append(ctx, []domain.Record{record(1), record(2)}); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Append(ctx, []domain.Record{record(3)}); err != nil {
		t.Fatalf("second Append: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(after, before) {
		t.Fatal("existing ledger content was rewritten")
	}
	if n := strings.Count(string(after), "hash,blockNumber"); n != 1 {
		t.Errorf("expected header once, found %d times", n)
	}
	if lines := strings.Count(string(after), "\n"); lines != 4 {
		t.Errorf("expected 4 lines, got %d", lines)
	}
}

func TestLedger_AppendRepairsMissingNewline(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := NewLedger(path)

	if err := l.Append(ctx, []domain.Record{record(1)}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if err := os.WriteFile(path, bytes.TrimRight(data, "\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Append(ctx, []domain.Record{record(2)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	recs, err := l.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records, got %d", len(recs))
	}
}

func TestLedger_Unreadable(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no hash column", "id,value\n1,2\n"},
		{"ragged rows", "hash,value\n0xaa,1\n0xbb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ledger.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := NewLedger(path).ExistingHashes(context.Background())
			if !errors.Is(err, domain.ErrLedgerUnreadable) {
				t.Errorf("expected ErrLedgerUnreadable, got %v", err)
			}
		})
	}
}

func TestLedger_Divert(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l := NewLedger(filepath.Join(dir, "0xabcdef_20260101.csv"))

	side, err := l.Divert("run1")
	if err != nil {
		t.Fatalf("Divert: %v", err)
	}
	want := filepath.Join(dir, "0xabcdef_20260101.run1.csv")
	if side.Location() != want {
		t.Errorf("expected %s, got %s", want, side.Location())
	}
	if err := side.Append(ctx, []domain.Record{record(1)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Divert("run1"); err == nil {
		t.Error("expected error diverting onto an existing file")
	}
}

func TestLedger_AppendFollowsExistingHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		row    string
	}{
		{
			name:   "legacy eight columns",
			header: "hash,blockNumber,timeStamp,from,to,value,gas,gasPrice",
			row:    "0xold,1,2023-11-14T22:13:20Z,0xaa,0xbb,1.5,21000,1",
		},
		{
			name:   "reordered columns",
			header: "value,isError,to,from,hash,timeStamp,blockNumber,gas,gasPrice,gasUsed",
			row:    "1.5,0,0xbb,0xaa,0xold,2023-11-14T22:13:20Z,1,21000,1,21000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "ledger.csv")
			if err := os.WriteFile(path, []byte(tt.header+"\n"+tt.row+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			l := NewLedger(path)

			if err := l.Append(ctx, []domain.Record{record(1), record(2)}); err != nil {
				t.Fatalf("Append: %v", err)
			}

			hashes, err := l.ExistingHashes(ctx)
			if err != nil {
				t.Fatalf("ledger unreadable after append: %v", err)
			}
			for _, h := range []string{"0xold", record(1).Hash, record(2).Hash} {
				if _, ok := hashes[h]; !ok {
					t.Errorf("hash %s not found, got %v", h, hashes)
				}
			}

			recs, err := l.Records(ctx)
			if err != nil {
				t.Fatalf("Records: %v", err)
			}
			if len(recs) != 3 || !recs[1].Value.Equal(record(1).Value) || recs[2].BlockNumber != record(2).BlockNumber {
				t.Errorf("unexpected records: %+v", recs)
			}

			data, _ := os.ReadFile(path)
			if !strings.HasPrefix(string(data), tt.header+"\n") {
				t.Error("header was rewritten")
			}
		})
	}
}

func TestLedger_AppendDropsPartialRow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := NewLedger(path)

	if err := l.Append(ctx, []domain.Record{record(1)}); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	// what an append cut short by a crash leaves behind
	if _, err := f.WriteString(record(9).Hash + ",1009,2023"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := l.Append(ctx, []domain.Record{record(2)}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := l.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 2 || recs[0].Hash != record(1).Hash || recs[1].Hash != record(2).Hash {
		t.Errorf("unexpected records: %+v", recs)
	}
}
