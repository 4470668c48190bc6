package valr

import (
	"context"
	"net/http"
	"strconv"
)

// MarketTradeParams pages GET /v1/marketdata/{pair}/tradehistory. Zero
// values are left out of the query.
type MarketTradeParams struct {
	Skip  int
	Limit int
}

// Query renders the non-zero params, limit first.
func (p MarketTradeParams) Query() Query {
	var q Query
	if p.Limit > 0 {
		q = q.Add("limit", strconv.Itoa(p.Limit))
	}
	if p.Skip > 0 {
		q = q.Add("skip", strconv.Itoa(p.Skip))
	}
	return q
}

// OrderbookCall describes GET /v1/marketdata/{pair}/orderbook.
func OrderbookCall(pair string) Call {
	return Call{Verb: http.MethodGet, Path: "/v1/marketdata/" + pairSegment(pair) + "/orderbook"}
}

// OrderbookSummaryCall describes GET /v1/marketdata/{pair}/orderbook/summary.
func OrderbookSummaryCall(pair string) Call {
	return Call{Verb: http.MethodGet, Path: "/v1/marketdata/" + pairSegment(pair) + "/orderbook/summary"}
}

// MarketTradeHistoryCall describes GET /v1/marketdata/{pair}/tradehistory.
func MarketTradeHistoryCall(pair string, p MarketTradeParams) Call {
	return Call{Verb: http.MethodGet, Path: "/v1/marketdata/" + pairSegment(pair) + "/tradehistory", Query: p.Query()}
}

// MarketSummaryCall covers every pair when pair is empty.
func MarketSummaryCall(pair string) Call {
	if seg := pairSegment(pair); seg != "" {
		return Call{Verb: http.MethodGet, Path: "/v1/marketdata/" + seg + "/marketsummary"}
	}
	return Call{Verb: http.MethodGet, Path: "/v1/marketdata/marketsummary"}
}

// ServerTimeCall describes GET /v1/public/time. Its result is never cached.
func ServerTimeCall() Call {
	return Call{Verb: http.MethodGet, Path: "/v1/public/time", NoCache: true}
}

// Orderbook returns the aggregated order book of pair.
func (c *Client) Orderbook(ctx context.Context, pair string) (*Orderbook, error) {
	var out Orderbook
	if err := c.DoJSON(ctx, OrderbookCall(pair), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderbookSummary returns the top of book aggregated by price.
func (c *Client) OrderbookSummary(ctx context.Context, pair string) (*Orderbook, error) {
	var out Orderbook
	if err := c.DoJSON(ctx, OrderbookSummaryCall(pair), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarketTradeHistory returns recent public trades on pair.
func (c *Client) MarketTradeHistory(ctx context.Context, pair string, p MarketTradeParams) ([]MarketTrade, error) {
	var out []MarketTrade
	if err := c.DoJSON(ctx, MarketTradeHistoryCall(pair, p), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketSummary returns the summary of every listed pair.
func (c *Client) MarketSummary(ctx context.Context) ([]MarketSummary, error) {
	var out []MarketSummary
	if err := c.DoJSON(ctx, MarketSummaryCall(""), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PairMarketSummary returns the 24h summary of a single pair.
func (c *Client) PairMarketSummary(ctx context.Context, pair string) (*MarketSummary, error) {
	var out MarketSummary
	if err := c.DoJSON(ctx, MarketSummaryCall(pair), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServerTime returns the exchange clock.
func (c *Client) ServerTime(ctx context.Context) (*ServerTime, error) {
	var out ServerTime
	if err := c.DoJSON(ctx, ServerTimeCall(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
