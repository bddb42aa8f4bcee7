// Package provider implements the HTTP session used to reach the ledger API.
//
// This package contains:
//   - Transport: the seam the dispatcher calls, so tests can swap in fakes
//   - HTTPProvider: query-string GET over a reused http.Client
package provider

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Transport performs one GET against the API endpoint with the given query.
// A non-nil error means the request never produced an HTTP response.
type Transport interface {
	Get(ctx context.Context, query url.Values) (*Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Name          string        `json:"name"`
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}
