package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal tracks API attempts per request kind and outcome status
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerscan_api_requests_total",
			Help: "Total number of API request attempts",
		},
		[]string{"kind", "status"},
	)

	// APIRetriesTotal tracks retries per request kind and failure reason
	APIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerscan_api_retries_total",
			Help: "Total number of API request retries",
		},
		[]string{"kind", "reason"},
	)

	// APILatency tracks API call latency
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerscan_api_latency_seconds",
			Help:    "API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// HistoryPagesFetched tracks history pages fetched
	HistoryPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerscan_history_pages_fetched_total",
			Help: "Total number of transaction history pages fetched",
		},
	)

	// LedgerRecordsWritten tracks records appended per storage backend
	LedgerRecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerscan_ledger_records_written_total",
			Help: "Total number of records appended to a persisted ledger",
		},
		[]string{"backend"},
	)

	// LedgerDedupDegraded tracks merges that ran without deduplication
	LedgerDedupDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerscan_ledger_dedup_degraded_total",
			Help: "Number of merges that ran with deduplication disabled",
		},
	)

	// LastSyncTimestamp tracks the last successful sync per address
	LastSyncTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerscan_last_sync_timestamp_seconds",
			Help: "Unix time of the last completed sync",
		},
		[]string{"address"},
	)
)
