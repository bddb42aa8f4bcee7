// Package health provides sync health tracking and the status endpoints.
package health

import (
	"time"

	"github.com/vietddude/ledgerscan/internal/infra/rpc"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SyncState is what the last sync of an address left behind.
type SyncState struct {
	At       time.Time
	Written  int
	Degraded bool
	Err      error
}

// AddressHealth contains health details for one tracked address.
type AddressHealth struct {
	Address    string       `json:"address"`
	Status     SystemStatus `json:"status"`
	LastSyncAt time.Time    `json:"last_sync_at"`
	LastError  string       `json:"last_error,omitempty"`
	Written    int          `json:"written"`
	Degraded   bool         `json:"ledger_degraded"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus             `json:"system_status"`
	Provider     rpc.HealthStatus         `json:"provider"`
	Addresses    map[string]AddressHealth `json:"addresses"`
}
