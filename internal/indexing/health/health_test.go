package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/ledgerscan/internal/infra/rpc"
)

type stubProvider struct {
	available bool
}

func (s stubProvider) GetHealth() rpc.HealthStatus {
	return rpc.HealthStatus{Name: "etherscan", Available: s.available}
}

func TestMonitor_Report(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		available bool
		state     SyncState
		want      SystemStatus
	}{
		{"healthy", true, SyncState{At: now.Add(-time.Minute), Written: 3}, StatusHealthy},
		{"sync error", true, SyncState{At: now, Err: errors.New("price: api_error")}, StatusDegraded},
		{"ledger degraded", true, SyncState{At: now, Degraded: true}, StatusDegraded},
		{"stale", true, SyncState{At: now.Add(-time.Hour)}, StatusCritical},
		{"provider down", false, SyncState{At: now}, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(stubProvider{available: tt.available}, 10*time.Minute)
			m.now = func() time.Time { return now }
			m.RecordSync("0xabc", tt.state)

			if got := m.Report().SystemStatus; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestServer_Endpoints(t *testing.T) {
	m := NewMonitor(stubProvider{available: true}, 0)
	m.RecordSync("0xabc", SyncState{At: time.Now(), Written: 2})
	srv := httptest.NewServer(NewServer(m, 0).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("unexpected /health: %d %v", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatal(err)
	}
	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	resp.Body.Close()
	if report.Addresses["0xabc"].Written != 2 {
		t.Errorf("unexpected detailed report: %+v", report)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("unexpected /metrics response: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestServer_CriticalIs503(t *testing.T) {
	m := NewMonitor(stubProvider{available: false}, 0)
	rec := httptest.NewRecorder()
	NewServer(m, 0).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
