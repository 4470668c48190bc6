package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/valr-go/pkg/valr"
)

// Job kinds map one-to-one onto the read-only VALR endpoints the poller snapshots.
const (
	KindBalances            = "balances"
	KindTransactionHistory  = "transaction_history"
	KindAccountTradeHistory = "account_trade_history"
	KindSubaccounts         = "subaccounts"
	KindOrderbook           = "orderbook"
	KindOrderbookSummary    = "orderbook_summary"
	KindMarketTradeHistory  = "market_trade_history"
	KindMarketSummary       = "market_summary"
	KindServerTime          = "server_time"
)

// Job describes one endpoint snapshot taken on every poll.
type Job struct {
	ID               string   `json:"id" yaml:"id"`
	Kind             string   `json:"kind" yaml:"kind"`
	Pair             string   `json:"pair" yaml:"pair"`
	SubaccountID     string   `json:"subaccount_id" yaml:"subaccount_id"`
	Currency         string   `json:"currency" yaml:"currency"`
	TransactionTypes []string `json:"transaction_types" yaml:"transaction_types"`
	Limit            int      `json:"limit" yaml:"limit"`
	Enabled          *bool    `json:"enabled" yaml:"enabled"`
}

type jobsFile struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// LoadJobs reads the jobs registry from a YAML/JSON file.
func LoadJobs(path string) ([]Job, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("jobs file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	reg, err := parseJobs(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(reg.Jobs) == 0 {
		return nil, errors.New("jobs file contains no jobs entries")
	}

	seen := make(map[string]struct{}, len(reg.Jobs))
	out := make([]Job, 0, len(reg.Jobs))
	for i := range reg.Jobs {
		job := sanitizeJob(reg.Jobs[i])
		if err := validateJob(job); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, exists := seen[job.ID]; exists {
			return nil, fmt.Errorf("duplicate job id %q", job.ID)
		}
		seen[job.ID] = struct{}{}
		out = append(out, job)
	}
	return out, nil
}

func parseJobs(data []byte, ext string) (jobsFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg jobsFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return jobsFile{}, errors.New("jobs file format not recognized (expected YAML or JSON)")
}

func sanitizeJob(j Job) Job {
	j.ID = strings.TrimSpace(j.ID)
	j.Kind = strings.ToLower(strings.TrimSpace(j.Kind))
	j.Pair = strings.ToUpper(strings.TrimSpace(j.Pair))
	j.SubaccountID = strings.TrimSpace(j.SubaccountID)
	j.Currency = strings.ToUpper(strings.TrimSpace(j.Currency))

	types := make([]string, 0, len(j.TransactionTypes))
	for _, t := range j.TransactionTypes {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	j.TransactionTypes = types

	if j.Limit < 0 {
		j.Limit = 0
	}
	if j.Enabled == nil {
		def := true
		j.Enabled = &def
	}
	return j
}

func validateJob(j Job) error {
	if j.ID == "" {
		return errors.New("id is required")
	}
	switch j.Kind {
	case "":
		return fmt.Errorf("kind is required for job %q", j.ID)
	case KindOrderbook, KindOrderbookSummary, KindMarketTradeHistory, KindAccountTradeHistory:
		if j.Pair == "" {
			return fmt.Errorf("pair is required for %s job %q", j.Kind, j.ID)
		}
	case KindBalances, KindTransactionHistory, KindSubaccounts, KindMarketSummary, KindServerTime:
	default:
		return fmt.Errorf("unsupported kind %q for job %q", j.Kind, j.ID)
	}
	return nil
}

// EnabledValue returns enabled flag defaulting to true.
func (j Job) EnabledValue() bool {
	if j.Enabled == nil {
		return true
	}
	return *j.Enabled
}

// Call translates the job into the VALR call it snapshots.
func (j Job) Call() (valr.Call, error) {
	switch j.Kind {
	case KindBalances:
		return valr.BalancesCall(j.SubaccountID), nil
	case KindTransactionHistory:
		return valr.TransactionHistoryCall(valr.TransactionHistoryParams{
			Limit:            j.Limit,
			Currency:         j.Currency,
			TransactionTypes: j.TransactionTypes,
			SubaccountID:     j.SubaccountID,
		}), nil
	case KindAccountTradeHistory:
		return valr.AccountTradeHistoryCall(j.Pair, valr.TradeHistoryParams{
			Limit:        j.Limit,
			SubaccountID: j.SubaccountID,
		}), nil
	case KindSubaccounts:
		return valr.SubaccountsCall(), nil
	case KindOrderbook:
		return valr.OrderbookCall(j.Pair), nil
	case KindOrderbookSummary:
		return valr.OrderbookSummaryCall(j.Pair), nil
	case KindMarketTradeHistory:
		return valr.MarketTradeHistoryCall(j.Pair, valr.MarketTradeParams{Limit: j.Limit}), nil
	case KindMarketSummary:
		return valr.MarketSummaryCall(j.Pair), nil
	case KindServerTime:
		return valr.ServerTimeCall(), nil
	default:
		return valr.Call{}, fmt.Errorf("unsupported kind %q for job %q", j.Kind, j.ID)
	}
}
