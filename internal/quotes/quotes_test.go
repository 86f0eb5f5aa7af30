package quotes

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/execore/internal/money"
)

func TestQuoteUpdateMid(t *testing.T) {
	q := QuoteUpdate{Symbol: "AAPL", Bid: decimal.NewFromFloat(94), Ask: decimal.NewFromFloat(94.5)}
	assert.True(t, q.Mid().Equal(decimal.NewFromFloat(94.25)))
}

func TestQuoteUpdateIsStale(t *testing.T) {
	now := time.Now()
	q := QuoteUpdate{Symbol: "AAPL", Timestamp: now.Add(-10 * time.Second)}
	assert.True(t, q.IsStale(5*time.Second, now))
	assert.False(t, q.IsStale(30*time.Second, now))
}

func TestStreamerSubscribeTracksSymbolsWithoutConnection(t *testing.T) {
	s := NewStreamer("ws://example.invalid")
	err := s.SubscribeStockQuotes([]money.Symbol{"AAPL", "MSFT"})
	assert.NoError(t, err) // no active conn yet; tracked for resubscribe on connect
	assert.False(t, s.IsConnected())
}
