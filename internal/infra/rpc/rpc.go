// Package rpc provides a resilient client for rate-limited JSON/HTTP ledger APIs.
//
// This package offers:
//   - A reusable HTTP session (provider/)
//   - Outcome classification, jittered backoff and request pacing (routing/)
//
// # Quick Start
//
//	import "github.com/vietddude/ledgerscan/internal/infra/rpc"
//
//	session := rpc.NewHTTPProvider("etherscan", baseURL, 10*time.Second)
//	dispatcher := rpc.NewDispatcher(session, rpc.DispatcherConfig{
//	    Retry:       rpc.DefaultRetryConfig,
//	    MinInterval: 250 * time.Millisecond,
//	})
//
//	req := rpc.NewRequest(rpc.KindPrice, map[string]string{"module": "stats", "action": "ethprice"})
//	out := dispatcher.Execute(ctx, req)
//	if err := out.Error(); err != nil { ... }
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"context"
	"time"

	"github.com/vietddude/ledgerscan/internal/infra/rpc/provider"
	"github.com/vietddude/ledgerscan/internal/infra/rpc/routing"
)

// Executor runs one logical API call. *Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, req Request) Outcome
}

// =============================================================================
// Re-exported types from provider package
// =============================================================================

// Transport performs a single GET against the API.
type Transport = provider.Transport

// Response is a fully read HTTP response.
type Response = provider.Response

// HTTPProvider is the reusable HTTP session.
type HTTPProvider = provider.HTTPProvider

// HealthStatus represents the health state of a provider.
type HealthStatus = provider.HealthStatus

// NewHTTPProvider creates a new HTTP provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout)
}

// =============================================================================
// Re-exported types from routing package
// =============================================================================

// Request is an immutable API call description.
type Request = routing.Request

// Kind is the API operation a request performs.
type Kind = routing.Kind

// Outcome is the tagged result of a dispatched request.
type Outcome = routing.Outcome

// Dispatcher executes requests with pacing and retries.
type Dispatcher = routing.Dispatcher

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig = routing.DispatcherConfig

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// MessageRule maps an API message pattern to a severity.
type MessageRule = routing.MessageRule

// Severity classifies API-reported messages.
type Severity = routing.Severity

// Request kinds
const (
	KindBalance     = routing.KindBalance
	KindPrice       = routing.KindPrice
	KindHistoryPage = routing.KindHistoryPage
)

// Outcome reasons
const (
	ReasonTransport    = routing.ReasonTransport
	ReasonRateLimited  = routing.ReasonRateLimited
	ReasonServerError  = routing.ReasonServerError
	ReasonClientError  = routing.ReasonClientError
	ReasonMalformed    = routing.ReasonMalformed
	ReasonAPIThrottled = routing.ReasonAPIThrottled
	ReasonAPIError     = routing.ReasonAPIError
	ReasonAborted      = routing.ReasonAborted
)

// DefaultRetryConfig provides sensible retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// NewRequest creates a Request.
func NewRequest(kind Kind, params map[string]string) Request {
	return routing.NewRequest(kind, params)
}

// NewDispatcher creates a Dispatcher over a transport.
func NewDispatcher(t Transport, cfg DispatcherConfig, opts ...routing.Option) *Dispatcher {
	return routing.NewDispatcher(t, cfg, opts...)
}
