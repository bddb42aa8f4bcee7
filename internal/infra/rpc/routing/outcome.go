package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/ledgerscan/internal/core/domain"
)

// Status is the tag of an Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusRetriable
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetriable:
		return "retriable"
	case StatusFatal:
		return "fatal"
	}
	return "unknown"
}

// Reason explains a failed attempt.
type Reason string

const (
	ReasonTransport    Reason = "transport"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonServerError  Reason = "server_error"
	ReasonClientError  Reason = "client_error"
	ReasonMalformed    Reason = "malformed_response"
	ReasonAPIThrottled Reason = "api_throttled"
	ReasonAPIError     Reason = "api_error"
	ReasonAborted      Reason = "aborted"
)

// Outcome is the result of Dispatcher.Execute: a success carrying the
// payload's result field, or a retriable or fatal failure with its reason.
type Outcome struct {
	Status   Status
	Reason   Reason
	Result   json.RawMessage // nil for benign empty successes
	Message  string
	Err      error
	Attempts int

	retryAfter time.Duration
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Empty reports a success that carried no result, such as "no transactions found".
func (o Outcome) Empty() bool {
	return o.OK() && len(o.Result) == 0
}

// Error converts a failed outcome into an error matching domain.ErrTransient
// or domain.ErrFatal. Aborts return the context error unchanged.
func (o Outcome) Error() error {
	switch {
	case o.OK():
		return nil
	case o.Reason == ReasonAborted:
		return o.Err
	}

	kind := domain.ErrFatal
	if o.Status == StatusRetriable {
		kind = domain.ErrTransient
	}
	cause := o.Err
	if cause == nil {
		cause = errors.New("unknown error")
	}
	return fmt.Errorf("%w after %d attempt(s): %w", kind, o.Attempts, cause)
}

func success(result json.RawMessage, message string) Outcome {
	return Outcome{Status: StatusSuccess, Result: result, Message: message}
}

func retriable(reason Reason, err error) Outcome {
	return Outcome{Status: StatusRetriable, Reason: reason, Err: err}
}

func fatal(reason Reason, err error) Outcome {
	return Outcome{Status: StatusFatal, Reason: reason, Err: err}
}
