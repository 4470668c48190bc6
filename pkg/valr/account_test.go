package valr

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTransactionHistoryCallJoinsTypes(t *testing.T) {
	call := TransactionHistoryCall(TransactionHistoryParams{
		TransactionTypes: []string{"WITHDRAWAL", "DEPOSIT"},
		SubaccountID:     " sub-1 ",
	})
	if got, _ := call.Query.Get("transactionTypes"); got != "WITHDRAWAL,DEPOSIT" {
		t.Fatalf("transactionTypes = %q", got)
	}
	if got, _ := call.Query.Get("limit"); got != "100" {
		t.Fatalf("default limit = %q", got)
	}
	if _, ok := call.Query.Get("currency"); ok {
		t.Fatalf("empty currency must be omitted")
	}
	if !call.Auth || call.SubaccountID != "sub-1" {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestAccountTradeHistoryCallTemplatesPair(t *testing.T) {
	call := AccountTradeHistoryCall("btczar", TradeHistoryParams{Skip: 10, Limit: 50})
	if call.Path != "/v1/account/BTCZAR/tradehistory" {
		t.Fatalf("path = %s", call.Path)
	}
	if got := call.requestPath(); got != "/v1/account/BTCZAR/tradehistory?skip=10&limit=50" {
		t.Fatalf("request path = %s", got)
	}
}

func TestMarketTradeParamsOmitDefaults(t *testing.T) {
	if q := (MarketTradeParams{}).Query(); len(q) != 0 {
		t.Fatalf("expected empty query, got %v", q)
	}
	call := MarketTradeHistoryCall("ETHZAR", MarketTradeParams{Limit: 10})
	if got := call.requestPath(); got != "/v1/marketdata/ETHZAR/tradehistory?limit=10" {
		t.Fatalf("request path = %s", got)
	}
}

func TestMarketSummaryCallPaths(t *testing.T) {
	if p := MarketSummaryCall("").Path; p != "/v1/marketdata/marketsummary" {
		t.Fatalf("all pairs path = %s", p)
	}
	if p := MarketSummaryCall("BTCZAR").Path; p != "/v1/marketdata/BTCZAR/marketsummary" {
		t.Fatalf("pair path = %s", p)
	}
}

func TestTransactionPageAcceptsBareArray(t *testing.T) {
	var page TransactionPage
	if err := json.Unmarshal([]byte(`[{"id":"a"},{"id":"b"}]`), &page); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(page.Transactions) != 2 || page.Transactions[1].ID != "b" {
		t.Fatalf("unexpected page %+v", page)
	}

	var trades AccountTradePage
	if err := json.Unmarshal([]byte(`{"trades":[{"id":"x","price":"1"}],"isLastPage":true}`), &trades); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	if !trades.IsLastPage || len(trades.Trades) != 1 {
		t.Fatalf("unexpected trades %+v", trades)
	}
}

func TestTransactionDecodesBothShapes(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantType string
		wantDesc string
		wantAt   time.Time
	}{
		{
			name:     "object type with eventAt",
			body:     `{"transactionType":{"type":"LIMIT_BUY","description":"Limit Buy"},"debitCurrency":"ZAR","debitValue":"100","eventAt":"2019-06-28T10:01:09.465Z","id":"t1"}`,
			wantType: "LIMIT_BUY",
			wantDesc: "Limit Buy",
			wantAt:   time.Date(2019, 6, 28, 10, 1, 9, 465000000, time.UTC),
		},
		{
			name:     "bare type with timestamp",
			body:     `{"transactionType":"WITHDRAWAL","currency":"BTC","amount":"0.01","fee":"0.0001","timestamp":"2019-06-28T10:01:09.465Z","status":"COMPLETED"}`,
			wantType: "WITHDRAWAL",
			wantAt:   time.Date(2019, 6, 28, 10, 1, 9, 465000000, time.UTC),
		},
		{
			name:     "epoch millisecond eventAt",
			body:     `{"transactionType":"DEPOSIT","eventAt":1561716069465}`,
			wantType: "DEPOSIT",
			wantAt:   time.UnixMilli(1561716069465).UTC(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var tx Transaction
			if err := json.Unmarshal([]byte(tc.body), &tx); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if tx.TransactionType.Type != tc.wantType || tx.TransactionType.Description != tc.wantDesc {
				t.Fatalf("transaction type = %+v", tx.TransactionType)
			}
			if !tx.EventAt.Equal(tc.wantAt) {
				t.Fatalf("eventAt = %v, want %v", tx.EventAt, tc.wantAt)
			}
		})
	}

	var page TransactionPage
	body := `{"transactions":[{"transactionType":"WITHDRAWAL","currency":"BTC","amount":"0.01","fee":"0.0001","status":"COMPLETED"}],"isLastPage":true}`
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		t.Fatalf("Unmarshal page: %v", err)
	}
	tx := page.Transactions[0]
	if tx.Currency != "BTC" || tx.Amount.String() != "0.01" || tx.Fee.String() != "0.0001" || tx.Status != "COMPLETED" {
		t.Fatalf("flat transaction fields not decoded: %+v", tx)
	}
}

func TestOrderbookDecodesLastChangeForms(t *testing.T) {
	cases := []struct {
		name string
		body string
		want time.Time
	}{
		{"rfc3339", `{"Asks":[],"Bids":[],"LastChange":"2019-07-08T09:10:06.335Z"}`, time.Date(2019, 7, 8, 9, 10, 6, 335000000, time.UTC)},
		{"epoch ms", `{"Asks":[{"price":"1","quantity":"2"}],"Bids":[],"LastChange":123456789}`, time.UnixMilli(123456789).UTC()},
		{"quoted epoch ms", `{"Asks":[],"Bids":[],"LastChange":"1562577006335"}`, time.UnixMilli(1562577006335).UTC()},
		{"missing", `{"Asks":[],"Bids":[]}`, time.Time{}},
		{"null", `{"Asks":[],"Bids":[],"LastChange":null}`, time.Time{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var book Orderbook
			if err := json.Unmarshal([]byte(tc.body), &book); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !book.LastChange.Equal(tc.want) {
				t.Fatalf("LastChange = %v, want %v", book.LastChange, tc.want)
			}
		})
	}

	var book Orderbook
	if err := json.Unmarshal([]byte(`{"LastChange":"yesterday"}`), &book); err == nil {
		t.Fatalf("expected error for unparseable LastChange")
	}
}

func TestMarketSummaryAcceptsHighLowAliases(t *testing.T) {
	cases := []struct {
		name string
		body string
		high string
		low  string
	}{
		{"long keys", `{"currencyPair":"BTCZAR","highPrice":"10200.0","lowPrice":"9900.0"}`, "10200", "9900"},
		{"short keys", `{"currencyPair":"BTCZAR","high":"10200.0","low":"9900.0","created":"2019-08-16T07:22:53.440Z"}`, "10200", "9900"},
		{"long keys win", `{"highPrice":"2","high":"1","lowPrice":"1","low":"0.5"}`, "2", "1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m MarketSummary
			if err := json.Unmarshal([]byte(tc.body), &m); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if m.HighPrice.String() != tc.high || m.LowPrice.String() != tc.low {
				t.Fatalf("high/low = %s/%s, want %s/%s", m.HighPrice, m.LowPrice, tc.high, tc.low)
			}
		})
	}
}
