// Package quotes defines the streaming QuoteProvider and REST PriceFeed
// contracts PositionMonitor consumes, plus a gorilla/websocket
// implementation of QuoteProvider generalized from this engine's
// internal/polymarket/ws_client.go subscribe/reconnect idiom.
package quotes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// QuoteUpdate is one tick of a subscribed symbol.
type QuoteUpdate struct {
	Symbol    money.Symbol
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	BidSize   decimal.Decimal
	AskSize   decimal.Decimal
	Timestamp time.Time
	IsOption  bool
}

// Mid returns (bid+ask)/2.
func (q QuoteUpdate) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// IsStale reports whether the quote is older than maxAge relative to now.
func (q QuoteUpdate) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(q.Timestamp) > maxAge
}

// QuoteProvider is the streaming capability PositionMonitor subscribes
// through. The one implementation here is the direct WebSocket client
// (Streamer, this package); the core depends only on this interface.
type QuoteProvider interface {
	QuoteUpdates() <-chan QuoteUpdate
	SubscribeStockQuotes(symbols []money.Symbol) error
	UnsubscribeStockQuotes(symbols []money.Symbol) error
	SubscribeOptionsQuotes(symbols []money.Symbol) error
	UnsubscribeOptionsQuotes(symbols []money.Symbol) error
	IsConnected() bool
}

// Quote is a point-in-time snapshot returned by the REST fallback.
type Quote struct {
	Symbol money.Symbol
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	TS     time.Time
}

// PriceFeed is the REST fallback capability used when the streaming
// provider reports disconnected.
type PriceFeed interface {
	GetQuotes(ctx context.Context, symbols []money.Symbol) ([]Quote, error)
	GetLastPrice(ctx context.Context, instrument money.InstrumentId) (decimal.Decimal, error)
}
