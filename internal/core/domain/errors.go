package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures that were retried until the attempt budget ran out.
	ErrTransient = errors.New("transient failure")

	// ErrFatal marks failures that are never retried.
	ErrFatal = errors.New("fatal failure")

	// ErrInvalidInput is returned for bad addresses, credentials or arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPaginationExhausted is returned when history collection hits the page guard.
	ErrPaginationExhausted = errors.New("pagination guard exceeded")

	// ErrLedgerUnreadable is returned when a persisted ledger cannot be parsed.
	ErrLedgerUnreadable = errors.New("ledger unreadable")
)

// Operation names the caller-facing call that failed.
type Operation string

const (
	OpBalance Operation = "balance"
	OpPrice   Operation = "price"
	OpHistory Operation = "history"
	OpPersist Operation = "persist"
)

// OpError identifies which operation failed and why.
type OpError struct {
	Op     Operation
	Page   int // history page number, 0 when not paginated
	Reason string
	Err    error
}

func (e *OpError) Error() string {
	op := string(e.Op)
	if e.Page > 0 {
		op = fmt.Sprintf("%s page %d", e.Op, e.Page)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %v", op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %v", op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
