// Package aggregate derives value totals from a transaction set.
package aggregate

import (
	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
)

// Totals sums value received by and sent from address. Failed transactions
// are skipped. A self-transfer counts on both sides.
func Totals(records []domain.Record, address string) domain.Totals {
	received := decimal.Zero
	sent := decimal.Zero

	for _, r := range records {
		if r.Failed() {
			continue
		}
		if domain.SameAddress(r.To, address) {
			received = received.Add(r.Value)
		}
		if domain.SameAddress(r.From, address) {
			sent = sent.Add(r.Value)
		}
	}

	return domain.Totals{Received: received, Sent: sent}
}
