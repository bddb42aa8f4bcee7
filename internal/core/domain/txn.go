package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one normalized ledger transaction. Hash is the identity key: two
// records with the same hash are the same record.
type Record struct {
	Hash        string          `json:"hash"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   time.Time       `json:"timestamp"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	Gas         uint64          `json:"gas"`
	GasPrice    string          `json:"gas_price"`
	GasUsed     uint64          `json:"gas_used"`
	Status      TxStatus        `json:"status"`
}

type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// Failed reports whether the transaction was rejected on-chain.
func (r Record) Failed() bool {
	return r.Status == TxStatusFailed
}

// Totals holds the value moved to and from a reference address.
type Totals struct {
	Received decimal.Decimal `json:"received"`
	Sent     decimal.Decimal `json:"sent"`
}
