// Package etherscan adapts the Etherscan account and stats API to the
// chain.Adapter interface.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vietddude/ledgerscan/internal/core/domain"
	"github.com/vietddude/ledgerscan/internal/infra/rpc"
)

const (
	// NativeDecimals is the wei-per-ether exponent.
	NativeDecimals = 18

	startBlock = "0"
	endBlock   = "99999999"
)

// Config holds API parameters that are added to every request.
type Config struct {
	APIKey string
	// ChainID selects the network on multichain endpoints; empty omits it.
	ChainID string
	// Sort is the history order, "desc" (newest first) or "asc".
	Sort string
}

// Adapter implements chain.Adapter for Etherscan-compatible APIs.
type Adapter struct {
	client rpc.Executor
	cfg    Config
	log    *slog.Logger
}

// NewAdapter creates an Adapter over the given executor.
func NewAdapter(client rpc.Executor, cfg Config) *Adapter {
	if cfg.Sort == "" {
		cfg.Sort = "desc"
	}
	return &Adapter{
		client: client,
		cfg:    cfg,
		log:    slog.Default(),
	}
}

// GetBalance returns the balance of address in ether.
func (a *Adapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := domain.ValidateAddress(address); err != nil {
		return decimal.Zero, &domain.OpError{Op: domain.OpBalance, Err: err}
	}

	req := a.request(rpc.KindBalance, map[string]string{
		"module":  "account",
		"action":  "balance",
		"address": address,
		"tag":     "latest",
	})
	out := a.client.Execute(ctx, req)
	if err := out.Error(); err != nil {
		return decimal.Zero, &domain.OpError{Op: domain.OpBalance, Reason: string(out.Reason), Err: err}
	}

	var raw string
	if err := json.Unmarshal(out.Result, &raw); err != nil {
		return decimal.Zero, malformed(domain.OpBalance, 0, fmt.Errorf("balance result: %w", err))
	}
	wei, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, malformed(domain.OpBalance, 0, fmt.Errorf("balance %q: %w", raw, err))
	}
	return wei.Shift(-NativeDecimals), nil
}

type priceResult struct {
	ETHUSD          string `json:"ethusd"`
	ETHUSDTimestamp string `json:"ethusd_timestamp"`
}

// GetPrice returns the current ether price in USD.
func (a *Adapter) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	req := a.request(rpc.KindPrice, map[string]string{
		"module": "stats",
		"action": "ethprice",
	})
	out := a.client.Execute(ctx, req)
	if err := out.Error(); err != nil {
		return decimal.Zero, &domain.OpError{Op: domain.OpPrice, Reason: string(out.Reason), Err: err}
	}

	var res priceResult
	if err := json.Unmarshal(out.Result, &res); err != nil {
		return decimal.Zero, malformed(domain.OpPrice, 0, fmt.Errorf("price result: %w", err))
	}
	price, err := decimal.NewFromString(res.ETHUSD)
	if err != nil {
		return decimal.Zero, malformed(domain.OpPrice, 0, fmt.Errorf("ethusd %q: %w", res.ETHUSD, err))
	}
	return price, nil
}

// rawTx mirrors one txlist entry; Etherscan encodes every field as a string.
type rawTx struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Gas             string `json:"gas"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	IsError         string `json:"isError"`
	TxReceiptStatus string `json:"txreceipt_status"`
}

// GetHistoryPage fetches one page of normal transactions for address.
// A page whose entries cannot be normalized is rejected as a whole, since a
// silently shortened page would look like the last one.
func (a *Adapter) GetHistoryPage(
	ctx context.Context,
	address string,
	page, pageSize int,
) ([]domain.Record, error) {
	if err := domain.ValidateAddress(address); err != nil {
		return nil, &domain.OpError{Op: domain.OpHistory, Page: page, Err: err}
	}

	req := a.request(rpc.KindHistoryPage, map[string]string{
		"module":     "account",
		"action":     "txlist",
		"address":    address,
		"startblock": startBlock,
		"endblock":   endBlock,
		"page":       strconv.Itoa(page),
		"offset":     strconv.Itoa(pageSize),
		"sort":       a.cfg.Sort,
	})
	out := a.client.Execute(ctx, req)
	if err := out.Error(); err != nil {
		return nil, &domain.OpError{Op: domain.OpHistory, Page: page, Reason: string(out.Reason), Err: err}
	}
	if out.Empty() {
		return nil, nil
	}

	var raws []rawTx
	if err := json.Unmarshal(out.Result, &raws); err != nil {
		return nil, malformed(domain.OpHistory, page, fmt.Errorf("txlist result: %w", err))
	}

	records := make([]domain.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := parseTransaction(raw)
		if err != nil {
			return nil, malformed(domain.OpHistory, page, fmt.Errorf("entry %d: %w", i, err))
		}
		records = append(records, rec)
	}

	a.log.Debug("Fetched history page", "address", address, "page", page, "records", len(records))
	return records, nil
}

func (a *Adapter) request(kind rpc.Kind, params map[string]string) rpc.Request {
	params["apikey"] = a.cfg.APIKey
	if a.cfg.ChainID != "" {
		params["chainid"] = a.cfg.ChainID
	}
	return rpc.NewRequest(kind, params)
}

func parseTransaction(raw rawTx) (domain.Record, error) {
	if raw.Hash == "" {
		return domain.Record{}, fmt.Errorf("missing hash")
	}

	block, err := parseUint(raw.BlockNumber)
	if err != nil {
		return domain.Record{}, fmt.Errorf("blockNumber: %w", err)
	}
	ts, err := parseUint(raw.TimeStamp)
	if err != nil {
		return domain.Record{}, fmt.Errorf("timeStamp: %w", err)
	}
	wei, err := decimal.NewFromString(orZero(raw.Value))
	if err != nil {
		return domain.Record{}, fmt.Errorf("value: %w", err)
	}
	gas, err := parseUint(raw.Gas)
	if err != nil {
		return domain.Record{}, fmt.Errorf("gas: %w", err)
	}
	gasUsed, err := parseUint(raw.GasUsed)
	if err != nil {
		return domain.Record{}, fmt.Errorf("gasUsed: %w", err)
	}

	status := domain.TxStatusSuccess
	if raw.IsError == "1" || raw.TxReceiptStatus == "0" {
		status = domain.TxStatusFailed
	}

	return domain.Record{
		Hash:        strings.ToLower(raw.Hash),
		BlockNumber: block,
		Timestamp:   time.Unix(int64(ts), 0).UTC(),
		From:        strings.ToLower(raw.From),
		To:          strings.ToLower(raw.To),
		Value:       wei.Shift(-NativeDecimals),
		Gas:         gas,
		GasPrice:    orZero(raw.GasPrice),
		GasUsed:     gasUsed,
		Status:      status,
	}, nil
}

func malformed(op domain.Operation, page int, err error) error {
	return &domain.OpError{
		Op:     op,
		Page:   page,
		Reason: string(rpc.ReasonMalformed),
		Err:    fmt.Errorf("%w: %w", domain.ErrFatal, err),
	}
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(orZero(s), 10, 64)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
