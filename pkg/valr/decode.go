package valr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnmarshalJSON accepts "WITHDRAWAL" as well as {"type":..,"description":..}.
func (t *TransactionTypeInfo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TransactionTypeInfo{Type: s}
		return nil
	}
	type plain TransactionTypeInfo
	return json.Unmarshal(data, (*plain)(t))
}

// UnmarshalJSON fills EventAt from "timestamp" when "eventAt" is absent.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		EventAt   json.RawMessage `json:"eventAt"`
		Timestamp json.RawMessage `json:"timestamp"`
	}{plain: (*plain)(tx)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := aux.EventAt
	if isNullJSON(raw) {
		raw = aux.Timestamp
	}
	at, err := decodeTimestamp(raw)
	if err != nil {
		return fmt.Errorf("transaction eventAt: %w", err)
	}
	tx.EventAt = at
	return nil
}

// UnmarshalJSON decodes LastChange from RFC3339 or epoch milliseconds.
func (o *Orderbook) UnmarshalJSON(data []byte) error {
	type plain Orderbook
	aux := struct {
		*plain
		LastChange json.RawMessage `json:"LastChange"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	at, err := decodeTimestamp(aux.LastChange)
	if err != nil {
		return fmt.Errorf("orderbook LastChange: %w", err)
	}
	o.LastChange = at
	return nil
}

// UnmarshalJSON takes "high"/"low" when "highPrice"/"lowPrice" are absent.
func (m *MarketSummary) UnmarshalJSON(data []byte) error {
	type plain MarketSummary
	aux := struct {
		*plain
		HighPrice decimal.NullDecimal `json:"highPrice"`
		LowPrice  decimal.NullDecimal `json:"lowPrice"`
		High      decimal.NullDecimal `json:"high"`
		Low       decimal.NullDecimal `json:"low"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.HighPrice = firstValid(aux.HighPrice, aux.High)
	m.LowPrice = firstValid(aux.LowPrice, aux.Low)
	return nil
}

func firstValid(values ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range values {
		if v.Valid {
			return v.Decimal
		}
	}
	return decimal.Decimal{}
}

// decodeTimestamp reads an RFC3339 string or an epoch-millisecond number
// (bare or quoted). Absent and null values yield the zero time.
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	if isNullJSON(raw) {
		return time.Time{}, nil
	}
	raw = bytes.TrimSpace(raw)

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return time.Time{}, nil
		}
	}

	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if raw[0] != '"' {
		return time.Time{}, fmt.Errorf("timestamp %s is not epoch milliseconds", raw)
	}
	at, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is neither RFC3339 nor epoch milliseconds", text)
	}
	return at, nil
}

func isNullJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
