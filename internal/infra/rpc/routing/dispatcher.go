package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/ledgerscan/internal/indexing/metrics"
	"github.com/vietddude/ledgerscan/internal/infra/rpc/provider"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Retry RetryConfig

	// MinInterval is waited before every attempt to stay under the remote
	// requests-per-second ceiling.
	MinInterval time.Duration
}

// Dispatcher executes one logical API call at a time, retrying transient
// failures. It is not safe for concurrent use.
type Dispatcher struct {
	transport   provider.Transport
	backoff     *Backoff
	classifier  *Classifier
	maxAttempts int
	minInterval time.Duration
	sleep       SleepFunc
	log         *slog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithSleep replaces the sleep used for pacing and backoff.
func WithSleep(fn SleepFunc) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithBackoff replaces the backoff policy built from the retry config.
func WithBackoff(b *Backoff) Option {
	return func(d *Dispatcher) { d.backoff = b }
}

// WithClassifier replaces the default message classifier.
func WithClassifier(c *Classifier) Option {
	return func(d *Dispatcher) { d.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher creates a Dispatcher over the given transport.
func NewDispatcher(t provider.Transport, cfg DispatcherConfig, opts ...Option) *Dispatcher {
	retry := cfg.Retry.normalized()
	d := &Dispatcher{
		transport:   t,
		backoff:     NewBackoff(retry, nil),
		classifier:  NewClassifier(nil, SeverityFatal),
		maxAttempts: retry.MaxAttempts,
		minInterval: cfg.MinInterval,
		sleep:       sleepCtx,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute performs req, retrying retriable failures up to MaxAttempts.
// Context cancellation aborts immediately and is never retried.
func (d *Dispatcher) Execute(ctx context.Context, req Request) Outcome {
	kind := string(req.Kind())
	var last Outcome

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if d.minInterval > 0 {
			if err := d.sleep(ctx, d.minInterval); err != nil {
				return aborted(err, attempt-1)
			}
		}

		start := time.Now()
		resp, err := d.transport.Get(ctx, req.Query())
		metrics.APILatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		out := d.classify(ctx, req, resp, err)
		out.Attempts = attempt
		metrics.APIRequestsTotal.WithLabelValues(kind, out.Status.String()).Inc()

		switch out.Status {
		case StatusSuccess:
			return out
		case StatusFatal:
			if out.Reason != ReasonAborted {
				d.log.Error("API request failed",
					"request", req.String(),
					"reason", out.Reason,
					"attempt", attempt,
					"error", out.Err,
				)
			}
			return out
		}

		last = out
		if attempt == d.maxAttempts {
			break
		}

		delay := d.backoff.NextDelay(attempt)
		if ra := min(out.retryAfter, d.backoff.MaxDelay()); ra > delay {
			delay = ra
		}
		metrics.APIRetriesTotal.WithLabelValues(kind, string(out.Reason)).Inc()
		d.log.Warn("API request failed, retrying",
			"request", req.String(),
			"reason", out.Reason,
			"attempt", attempt,
			"max_attempts", d.maxAttempts,
			"delay", delay,
			"error", out.Err,
		)

		if err := d.sleep(ctx, delay); err != nil {
			return aborted(err, attempt)
		}
	}

	d.log.Error("API request failed after retries",
		"request", req.String(),
		"reason", last.Reason,
		"attempts", last.Attempts,
		"error", last.Err,
	)
	return last
}

type envelope struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (d *Dispatcher) classify(
	ctx context.Context,
	req Request,
	resp *provider.Response,
	err error,
) Outcome {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return aborted(ctxErr, 0)
		}
		return retriable(ReasonTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		out := retriable(ReasonRateLimited, fmt.Errorf("http %d: rate limited", resp.StatusCode))
		out.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return out
	case resp.StatusCode >= 500:
		return retriable(ReasonServerError, fmt.Errorf("http %d: %s", resp.StatusCode, snippet(resp.Body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fatal(ReasonClientError, fmt.Errorf("http %d: %s", resp.StatusCode, snippet(resp.Body)))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fatal(ReasonMalformed, fmt.Errorf("parse response: %w", err))
	}
	status := strings.Trim(string(env.Status), `"`)
	if status == "" {
		return fatal(ReasonMalformed, fmt.Errorf("response has no status field: %s", snippet(resp.Body)))
	}

	if status == "1" {
		if len(env.Result) == 0 || string(env.Result) == "null" {
			return fatal(ReasonMalformed, errors.New("response has no result field"))
		}
		return success(env.Result, env.Message)
	}

	detail := resultText(env.Result)
	sev, matched := d.classifier.Classify(env.Message, detail)
	if !matched {
		d.log.Warn("Unrecognized API message",
			"request", req.String(),
			"status", status,
			"message", env.Message,
			"detail", detail,
			"treated_as", sev,
		)
	}

	apiErr := fmt.Errorf("api status %s: %s", status, joinMessage(env.Message, detail))
	switch sev {
	case SeverityBenign:
		return success(nil, env.Message)
	case SeverityTransient:
		return retriable(ReasonAPIThrottled, apiErr)
	default:
		return fatal(ReasonAPIError, apiErr)
	}
}

func aborted(err error, attempts int) Outcome {
	out := fatal(ReasonAborted, err)
	out.Attempts = attempts
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// resultText returns the result field when it is a JSON string.
func resultText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func joinMessage(message, detail string) string {
	switch {
	case detail == "" || detail == message:
		return message
	case message == "":
		return detail
	}
	return message + " (" + detail + ")"
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
