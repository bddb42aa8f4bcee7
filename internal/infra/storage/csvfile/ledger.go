// Package csvfile stores a transaction ledger as a header-having CSV file.
//
// New rows are rendered in memory first. A ledger that does not exist yet is
// created through a temp file and rename; an existing ledger only ever gets a
// suffix appended, and a failed append is cut back to the previous size.
// Appended rows use the column order of the existing header. An incomplete
// last row left by an interrupted append is dropped before writing.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/infra/storage"
)

// Header is the fixed column set, written once when the file is created.
var Header = []string{
	"hash", "blockNumber", "timeStamp", "from", "to",
	"value", "gas", "gasPrice", "gasUsed", "isError",
}

// Ledger is a CSV-backed storage.LedgerRepository.
type Ledger struct {
	path string
}

var (
	_ storage.LedgerRepository = (*Ledger)(nil)
	_ storage.Diverter         = (*Ledger)(nil)
	_ storage.RecordReader     = (*Ledger)(nil)
)

// NewLedger returns a ledger stored at path. The file is created on first append.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Location returns the file path.
func (l *Ledger) Location() string {
	return l.path
}

// ExistingHashes reads the hash column of every row.
func (l *Ledger) ExistingHashes(ctx context.Context) (map[string]struct{}, error) {
	hashes := make(map[string]struct{})
	err := l.scan(func(row []string, col columns) error {
		if h := strings.TrimSpace(row[col.hash]); h != "" {
			hashes[strings.ToLower(h)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// Records parses every row back into a record.
func (l *Ledger) Records(ctx context.Context) ([]domain.Record, error) {
	var recs []domain.Record
	err := l.scan(func(row []string, col columns) error {
		rec, err := parseRow(row, col)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

// Append writes records after the existing rows.
func (l *Ledger) Append(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	info, err := os.Stat(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return l.create(records)
	case err != nil:
		return fmt.Errorf("stat ledger: %w", err)
	case info.Size() == 0:
		return l.create(records)
	}
	return l.appendSuffix(records, info.Size())
}

// Divert returns a sibling ledger named <name>.<tag><ext>.
func (l *Ledger) Divert(tag string) (storage.LedgerRepository, error) {
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	target := fmt.Sprintf("%s.%s%s", base, tag, ext)
	if _, err := os.Stat(target); err == nil {
		return nil, fmt.Errorf("divert target %s already exists", target)
	}
	return NewLedger(target), nil
}

// create writes header and rows to a temp file and renames it into place.
func (l *Ledger) create(records []domain.Record) error {
	staged, err := render(records, Header, true)
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(staged); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("publish ledger: %w", err)
	}
	return nil
}

// appendSuffix appends rows in one write and truncates back on failure.
// Rows follow the column order of the file's own header.
func (l *Ledger) appendSuffix(records []domain.Record, size int64) error {
	f, err := os.OpenFile(l.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	header, err := readHeader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnreadable, l.path, err)
	}
	if _, err := indexColumns(header); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnreadable, l.path, err)
	}

	staged, err := render(records, header, false)
	if err != nil {
		return err
	}

	end, newline, err := completeRows(f, size, len(header))
	if err != nil {
		return fmt.Errorf("read ledger tail: %w", err)
	}
	if end < size {
		if err := f.Truncate(end); err != nil {
			return fmt.Errorf("drop partial row: %w", err)
		}
	}
	if newline {
		staged = append([]byte{'\n'}, staged...)
	}

	if _, err := f.WriteAt(staged, end); err != nil {
		return rollback(f, end, fmt.Errorf("append ledger: %w", err))
	}
	if err := f.Sync(); err != nil {
		return rollback(f, end, fmt.Errorf("sync ledger: %w", err))
	}
	return nil
}

// tailWindow bounds how much of the file end is inspected for a partial row.
const tailWindow = 64 << 10

// completeRows finds where the complete rows of the file end. A last line
// without its newline is kept when it holds a full row (newline is then
// true) and cut off otherwise, as an interrupted append leaves it.
func completeRows(f *os.File, size int64, fields int) (end int64, newline bool, err error) {
	from := max(size-tailWindow, 0)
	tail := make([]byte, size-from)
	if _, err := f.ReadAt(tail, from); err != nil && !errors.Is(err, io.EOF) {
		return 0, false, err
	}
	if tail[len(tail)-1] == '\n' {
		return size, false, nil
	}

	cut := bytes.LastIndexByte(tail, '\n')
	if cut < 0 && from == 0 {
		// Only a header without its newline.
		return size, true, nil
	}
	fragment := tail[cut+1:]

	row, err := csv.NewReader(bytes.NewReader(fragment)).Read()
	if err == nil && len(row) == fields {
		return size, true, nil
	}
	return from + int64(cut) + 1, false, nil
}

// readHeader returns the trimmed column names of the first line.
func readHeader(f *os.File) ([]string, error) {
	r := csv.NewReader(io.NewSectionReader(f, 0, tailWindow))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for i, name := range header {
		header[i] = normalizeColumn(name)
	}
	return header, nil
}

func rollback(f *os.File, size int64, cause error) error {
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	return cause
}

type columns struct {
	hash, block, ts, from, to, value, gas, gasPrice, gasUsed, isError int
}

// scan calls fn for every data row. A missing file has no rows.
func (l *Ledger) scan(fn func(row []string, col columns) error) error {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: header: %v", domain.ErrLedgerUnreadable, l.path, err)
	}
	col, err := indexColumns(header)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnreadable, l.path, err)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnreadable, l.path, err)
		}
		if err := fn(row, col); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnreadable, l.path, err)
		}
	}
}

func indexColumns(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[normalizeColumn(name)] = i
	}
	lookup := func(name string) int {
		if i, ok := pos[name]; ok {
			return i
		}
		return -1
	}

	col := columns{
		hash:     lookup("hash"),
		block:    lookup("blockNumber"),
		ts:       lookup("timeStamp"),
		from:     lookup("from"),
		to:       lookup("to"),
		value:    lookup("value"),
		gas:      lookup("gas"),
		gasPrice: lookup("gasPrice"),
		gasUsed:  lookup("gasUsed"),
		isError:  lookup("isError"),
	}
	if col.hash < 0 {
		return col, errors.New("header has no hash column")
	}
	return col, nil
}

func normalizeColumn(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
}

// render writes records with the given columns. Columns this package does
// not know are left empty.
func render(records []domain.Record, columns []string, header bool) ([]byte, error) {
	pos := make(map[string]int, len(Header))
	for i, name := range Header {
		pos[name] = i
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(columns); err != nil {
			return nil, fmt.Errorf("render header: %w", err)
		}
	}
	row := make([]string, len(columns))
	for _, r := range records {
		full := formatRow(r)
		for i, name := range columns {
			row[i] = ""
			if j, ok := pos[name]; ok {
				row[i] = full[j]
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("render %s: %w", r.Hash, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render ledger rows: %w", err)
	}
	return buf.Bytes(), nil
}

func formatRow(r domain.Record) []string {
	isError := "0"
	if r.Failed() {
		isError = "1"
	}
	return []string{
		r.Hash,
		strconv.FormatUint(r.BlockNumber, 10),
		r.Timestamp.UTC().Format(time.RFC3339),
		r.From,
		r.To,
		r.Value.String(),
		strconv.FormatUint(r.Gas, 10),
		r.GasPrice,
		strconv.FormatUint(r.GasUsed, 10),
		isError,
	}
}

func parseRow(row []string, col columns) (domain.Record, error) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := domain.Record{
		Hash:     get(col.hash),
		From:     get(col.from),
		To:       get(col.to),
		GasPrice: get(col.gasPrice),
		Status:   domain.TxStatusSuccess,
	}

	var err error
	if v := get(col.block); v != "" {
		if rec.BlockNumber, err = strconv.ParseUint(v, 10, 64); err != nil {
			return rec, fmt.Errorf("row %s blockNumber: %w", rec.Hash, err)
		}
	}
	if v := get(col.ts); v != "" {
		if rec.Timestamp, err = time.Parse(time.RFC3339, v); err != nil {
			return rec, fmt.Errorf("row %s timeStamp: %w", rec.Hash, err)
		}
	}
	if v := get(col.value); v != "" {
		if rec.Value, err = decimal.NewFromString(v); err != nil {
			return rec, fmt.Errorf("row %s value: %w", rec.Hash, err)
		}
	}
	if v := get(col.gas); v != "" {
		if rec.Gas, err = strconv.ParseUint(v, 10, 64); err != nil {
			return rec, fmt.Errorf("row %s gas: %w", rec.Hash, err)
		}
	}
	if v := get(col.gasUsed); v != "" {
		if rec.GasUsed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return rec, fmt.Errorf("row %s gasUsed: %w", rec.Hash, err)
		}
	}
	if get(col.isError) == "1" {
		rec.Status = domain.TxStatusFailed
	}
	return rec, nil
}
