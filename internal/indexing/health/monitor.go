package health

import (
	"sync"
	"time"

	"github.com/vietddude/ledgerscan/internal/infra/rpc"
)

// ProviderHealth reports transport health.
type ProviderHealth interface {
	GetHealth() rpc.HealthStatus
}

// Monitor aggregates provider health and per-address sync results.
type Monitor struct {
	provider   ProviderHealth
	staleAfter time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	syncs map[string]SyncState
}

// NewMonitor creates a monitor. A sync older than staleAfter is critical;
// zero disables the staleness check.
func NewMonitor(provider ProviderHealth, staleAfter time.Duration) *Monitor {
	return &Monitor{
		provider:   provider,
		staleAfter: staleAfter,
		now:        time.Now,
		syncs:      make(map[string]SyncState),
	}
}

// RecordSync stores the outcome of a sync run.
func (m *Monitor) RecordSync(address string, state SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs[address] = state
}

// Report builds the current health report. The worst component wins.
func (m *Monitor) Report() HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Addresses:    make(map[string]AddressHealth, len(m.syncs)),
	}

	if m.provider != nil {
		report.Provider = m.provider.GetHealth()
		if !report.Provider.Available {
			report.SystemStatus = StatusCritical
		}
	}

	for addr, s := range m.syncs {
		h := AddressHealth{
			Address:    addr,
			Status:     StatusHealthy,
			LastSyncAt: s.At,
			Written:    s.Written,
			Degraded:   s.Degraded,
		}
		if s.Err != nil {
			h.LastError = s.Err.Error()
		}

		switch {
		case m.staleAfter > 0 && m.now().Sub(s.At) > m.staleAfter:
			h.Status = StatusCritical
		case s.Err != nil || s.Degraded:
			h.Status = StatusDegraded
		}

		report.Addresses[addr] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	return report
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
