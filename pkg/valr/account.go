package valr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultPageLimit = 100

// TransactionHistoryParams filters GET /v1/account/transactionhistory.
type TransactionHistoryParams struct {
	Skip             int
	Limit            int
	Currency         string
	TransactionTypes []string
	SubaccountID     string
}

// Query renders the params. Skip and limit are always sent.
func (p TransactionHistoryParams) Query() Query {
	q := pageQuery(p.Skip, p.Limit)
	if c := strings.TrimSpace(p.Currency); c != "" {
		q = q.Add("currency", c)
	}
	if types := joinNonEmpty(p.TransactionTypes); types != "" {
		q = q.Add("transactionTypes", types)
	}
	return q
}

// TradeHistoryParams pages GET /v1/account/{pair}/tradehistory.
type TradeHistoryParams struct {
	Skip         int
	Limit        int
	SubaccountID string
}

// TransactionPage is one page of account transactions.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	IsLastPage   bool          `json:"isLastPage"`
}

// UnmarshalJSON accepts both a bare array and the paged envelope.
func (p *TransactionPage) UnmarshalJSON(data []byte) error {
	if isJSONArray(data) {
		p.IsLastPage = false
		return json.Unmarshal(data, &p.Transactions)
	}
	type alias TransactionPage
	return json.Unmarshal(data, (*alias)(p))
}

// AccountTradePage is one page of account trades.
type AccountTradePage struct {
	Trades     []AccountTrade `json:"trades"`
	IsLastPage bool           `json:"isLastPage"`
}

// UnmarshalJSON accepts both a bare array and the paged envelope.
func (p *AccountTradePage) UnmarshalJSON(data []byte) error {
	if isJSONArray(data) {
		p.IsLastPage = false
		return json.Unmarshal(data, &p.Trades)
	}
	type alias AccountTradePage
	return json.Unmarshal(data, (*alias)(p))
}

// BalancesCall describes GET /v1/account/balances.
func BalancesCall(subaccountID string) Call {
	return Call{Verb: http.MethodGet, Path: "/v1/account/balances", Auth: true, SubaccountID: strings.TrimSpace(subaccountID)}
}

// TransactionHistoryCall describes GET /v1/account/transactionhistory.
func TransactionHistoryCall(p TransactionHistoryParams) Call {
	return Call{
		Verb:         http.MethodGet,
		Path:         "/v1/account/transactionhistory",
		Query:        p.Query(),
		Auth:         true,
		SubaccountID: strings.TrimSpace(p.SubaccountID),
	}
}

// AccountTradeHistoryCall describes GET /v1/account/{pair}/tradehistory.
func AccountTradeHistoryCall(pair string, p TradeHistoryParams) Call {
	return Call{
		Verb:         http.MethodGet,
		Path:         "/v1/account/" + pairSegment(pair) + "/tradehistory",
		Query:        pageQuery(p.Skip, p.Limit),
		Auth:         true,
		SubaccountID: strings.TrimSpace(p.SubaccountID),
	}
}

// SubaccountsCall describes GET /v1/account/subaccounts.
func SubaccountsCall() Call {
	return Call{Verb: http.MethodGet, Path: "/v1/account/subaccounts", Auth: true}
}

// Balances returns the balances of the main account or the given subaccount.
func (c *Client) Balances(ctx context.Context, subaccountID string) ([]Balance, error) {
	var out []Balance
	if err := c.DoJSON(ctx, BalancesCall(subaccountID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TransactionHistory returns one page of account transactions.
func (c *Client) TransactionHistory(ctx context.Context, p TransactionHistoryParams) (*TransactionPage, error) {
	var out TransactionPage
	if err := c.DoJSON(ctx, TransactionHistoryCall(p), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountTradeHistory returns one page of the account's trades on pair.
func (c *Client) AccountTradeHistory(ctx context.Context, pair string, p TradeHistoryParams) (*AccountTradePage, error) {
	var out AccountTradePage
	if err := c.DoJSON(ctx, AccountTradeHistoryCall(pair, p), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subaccounts lists the subaccounts of the primary account.
func (c *Client) Subaccounts(ctx context.Context) ([]Subaccount, error) {
	var out []Subaccount
	if err := c.DoJSON(ctx, SubaccountsCall(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pageQuery(skip, limit int) Query {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return Query{}.Add("skip", strconv.Itoa(skip)).Add("limit", strconv.Itoa(limit))
}

func joinNonEmpty(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ",")
}

func pairSegment(pair string) string {
	return url.PathEscape(strings.ToUpper(strings.TrimSpace(pair)))
}

func isJSONArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
