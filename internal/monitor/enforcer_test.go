package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/execore/internal/breaker"
	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/quotes"
)

type fakeProvider struct {
	updates   chan quotes.QuoteUpdate
	connected bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{updates: make(chan quotes.QuoteUpdate, 16), connected: true}
}

func (f *fakeProvider) QuoteUpdates() <-chan quotes.QuoteUpdate             { return f.updates }
func (f *fakeProvider) SubscribeStockQuotes(_ []money.Symbol) error         { return nil }
func (f *fakeProvider) UnsubscribeStockQuotes(_ []money.Symbol) error       { return nil }
func (f *fakeProvider) SubscribeOptionsQuotes(_ []money.Symbol) error       { return nil }
func (f *fakeProvider) UnsubscribeOptionsQuotes(_ []money.Symbol) error     { return nil }
func (f *fakeProvider) IsConnected() bool                                  { return f.connected }

type fakeFeed struct{}

func (fakeFeed) GetQuotes(_ context.Context, _ []money.Symbol) ([]quotes.Quote, error) { return nil, nil }
func (fakeFeed) GetLastPrice(_ context.Context, _ money.InstrumentId) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// TestStopTriggerFiresAndExitSucceeds covers a stop level crossed by an
// incoming quote, driving a successful exit submission.
func TestStopTriggerFiresAndExitSucceeds(t *testing.T) {
	provider := newFakeProvider()
	paper := brokerpkg.NewPaper(nil)
	cb := breaker.New("stops-monitor", breaker.DefaultConfig())

	e := NewEnforcer(DefaultConfig(), provider, fakeFeed{}, paper, cb)

	require.NoError(t, e.RegisterPosition(MonitoredPosition{
		PositionId:     "pos-1",
		Instrument:     "AAPL",
		Symbol:         "AAPL",
		InstrumentKind: money.InstrumentEquity,
		Qty:            decimal.NewFromInt(10),
		Direction:      DirectionLong,
		Levels: StopTargetLevels{
			Entry:  decimal.NewFromInt(100),
			Stop:   decimal.NewFromInt(95),
			Target: decimal.NewFromInt(110),
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	provider.updates <- quotes.QuoteUpdate{
		Symbol: "AAPL", Bid: decimal.NewFromFloat(94), Ask: decimal.NewFromFloat(94.5), Timestamp: time.Now(),
	}

	var result ExitResult
	select {
	case result = <-e.ExitResults():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit result")
	}

	assert.True(t, result.Success)
	assert.Equal(t, TriggerStopLoss, result.Trigger)
	assert.False(t, e.monitor.Has("pos-1"))

	// A subsequent quote must not re-fire: position already removed.
	provider.updates <- quotes.QuoteUpdate{
		Symbol: "AAPL", Bid: decimal.NewFromFloat(93), Ask: decimal.NewFromFloat(93.5), Timestamp: time.Now(),
	}
	select {
	case r := <-e.ExitResults():
		t.Fatalf("unexpected second exit result: %+v", r)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPriceMonitorStopWinsOnSimultaneousTrigger(t *testing.T) {
	m := NewPriceMonitor()
	require.NoError(t, m.Register(MonitoredPosition{
		PositionId: "p1", Symbol: "X", Direction: DirectionLong,
		Levels: StopTargetLevels{Entry: decimal.NewFromInt(100), Stop: decimal.NewFromInt(95), Target: decimal.NewFromInt(105)},
	}))
	// Register rejects levels where one price could satisfy both stop and
	// target, so the registered position only checks that a price at the
	// stop fires StopLoss.
	triggers := m.CheckPrice("X", decimal.NewFromInt(95))
	require.Len(t, triggers, 1)
	assert.Equal(t, TriggerStopLoss, triggers[0].Kind)

	// The tie-break itself is checked on evaluateTrigger with levels where
	// price 100 satisfies both stop (<=100) and target (>=100).
	kind, fired := evaluateTrigger(MonitoredPosition{
		Direction: DirectionLong,
		Levels:    StopTargetLevels{Stop: decimal.NewFromInt(100), Target: decimal.NewFromInt(100)},
	}, decimal.NewFromInt(100))
	require.True(t, fired)
	assert.Equal(t, TriggerStopLoss, kind)
}

func TestPriceMonitorRemoveUnsubscribesOnlyWhenEmpty(t *testing.T) {
	m := NewPriceMonitor()
	require.NoError(t, m.Register(MonitoredPosition{
		PositionId: "p1", Symbol: "X", Direction: DirectionLong,
		Levels: StopTargetLevels{Entry: decimal.NewFromInt(100), Stop: decimal.NewFromInt(95), Target: decimal.NewFromInt(105)},
	}))
	require.NoError(t, m.Register(MonitoredPosition{
		PositionId: "p2", Symbol: "X", Direction: DirectionLong,
		Levels: StopTargetLevels{Entry: decimal.NewFromInt(100), Stop: decimal.NewFromInt(95), Target: decimal.NewFromInt(105)},
	}))

	stillWatched, ok := m.Remove("p1")
	require.True(t, ok)
	assert.True(t, stillWatched)

	stillWatched, ok = m.Remove("p2")
	require.True(t, ok)
	assert.False(t, stillWatched)
}

func TestMonitoredPositionLevelsRejectInvertedLong(t *testing.T) {
	m := NewPriceMonitor()
	err := m.Register(MonitoredPosition{
		PositionId: "bad", Symbol: "X", Direction: DirectionLong,
		Levels: StopTargetLevels{Entry: decimal.NewFromInt(100), Stop: decimal.NewFromInt(105), Target: decimal.NewFromInt(95)},
	})
	require.Error(t, err)
}
