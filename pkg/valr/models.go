package valr

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one currency balance of an account.
type Balance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Transaction is one account ledger entry. Both the debit/credit layout and
// the flat currency/amount/fee layout are decoded.
type Transaction struct {
	TransactionType TransactionTypeInfo `json:"transactionType"`
	DebitCurrency   string              `json:"debitCurrency,omitempty"`
	DebitValue      decimal.Decimal     `json:"debitValue"`
	CreditCurrency  string              `json:"creditCurrency,omitempty"`
	CreditValue     decimal.Decimal     `json:"creditValue"`
	FeeCurrency     string              `json:"feeCurrency,omitempty"`
	FeeValue        decimal.Decimal     `json:"feeValue"`
	Currency        string              `json:"currency,omitempty"`
	Amount          decimal.Decimal     `json:"amount"`
	Fee             decimal.Decimal     `json:"fee"`
	Status          string              `json:"status,omitempty"`
	EventAt         time.Time           `json:"eventAt"`
	AdditionalInfo  map[string]any      `json:"additionalInfo,omitempty"`
	ID              string              `json:"id"`
}

// TransactionTypeInfo names a transaction type. The API sends either an
// object or a bare type string.
type TransactionTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AccountTrade is one of the account's own fills.
type AccountTrade struct {
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrencyPair string          `json:"currencyPair"`
	TradedAt     time.Time       `json:"tradedAt"`
	Side         string          `json:"side"`
	SequenceID   int64           `json:"sequenceId"`
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
}

// Subaccount is a child account of the API key's primary account.
type Subaccount struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OrderbookEntry is one aggregated price level.
type OrderbookEntry struct {
	Side         string          `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CurrencyPair string          `json:"currencyPair"`
	OrderCount   int             `json:"orderCount"`
}

// Orderbook is an aggregated order book; the API capitalises its keys.
// LastChange arrives as RFC3339 or epoch milliseconds.
type Orderbook struct {
	Asks       []OrderbookEntry `json:"Asks"`
	Bids       []OrderbookEntry `json:"Bids"`
	LastChange time.Time        `json:"LastChange"`
}

// MarketTrade is one public trade on a pair.
type MarketTrade struct {
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrencyPair string          `json:"currencyPair"`
	TradedAt     time.Time       `json:"tradedAt"`
	TakerSide    string          `json:"takerSide"`
	SequenceID   int64           `json:"sequenceId"`
	ID           string          `json:"id"`
}

// MarketSummary is the 24h ticker of a pair. HighPrice and LowPrice also
// accept the short "high"/"low" keys.
type MarketSummary struct {
	CurrencyPair       string          `json:"currencyPair"`
	AskPrice           decimal.Decimal `json:"askPrice"`
	BidPrice           decimal.Decimal `json:"bidPrice"`
	LastTradedPrice    decimal.Decimal `json:"lastTradedPrice"`
	PreviousClosePrice decimal.Decimal `json:"previousClosePrice"`
	BaseVolume         decimal.Decimal `json:"baseVolume"`
	QuoteVolume        decimal.Decimal `json:"quoteVolume"`
	HighPrice          decimal.Decimal `json:"highPrice"`
	LowPrice           decimal.Decimal `json:"lowPrice"`
	Created            time.Time       `json:"created"`
	ChangeFromPrevious decimal.Decimal `json:"changeFromPrevious"`
}

// ServerTime is the exchange clock.
type ServerTime struct {
	EpochTime int64     `json:"epochTime"`
	Time      time.Time `json:"time"`
}
