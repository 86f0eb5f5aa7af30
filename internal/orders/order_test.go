package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/execore/internal/money"
)

func newTestOrder(t *testing.T, qty string) *Order {
	t.Helper()
	o, err := New(CreateOrderCommand{
		ClientOrderId: money.ClientOrderId("c-1"),
		Symbol:        money.Symbol("AAPL"),
		Side:          SideBuy,
		Type:          TypeLimit,
		TIF:           TIFDay,
		Qty:           decimal.RequireFromString(qty),
		LimitPrice:    decimal.RequireFromString("150"),
		Purpose:       PurposeEntry,
	})
	require.NoError(t, err)
	return o
}

func TestNew_InvalidQty(t *testing.T) {
	_, err := New(CreateOrderCommand{
		ClientOrderId: "c-1",
		Side:          SideBuy,
		Type:          TypeMarket,
		Qty:           decimal.Zero,
	})
	require.Error(t, err)
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
}

func TestNew_LimitRequiresPrice(t *testing.T) {
	_, err := New(CreateOrderCommand{
		ClientOrderId: "c-1",
		Side:          SideBuy,
		Type:          TypeLimit,
		Qty:           decimal.NewFromInt(1),
	})
	require.Error(t, err)
}

func TestAcceptSetsBrokerIdOnce(t *testing.T) {
	o := newTestOrder(t, "100")
	require.NoError(t, o.Accept(money.BrokerOrderId("B-1")))
	assert.Equal(t, StatusAccepted, o.Status)
	assert.Equal(t, money.BrokerOrderId("B-1"), o.BrokerOrderId)

	// Illegal: already accepted, can't accept again.
	err := o.Accept(money.BrokerOrderId("B-2"))
	require.Error(t, err)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, money.BrokerOrderId("B-1"), o.BrokerOrderId) // unchanged
}

func TestPartialThenFullFill(t *testing.T) {
	o := newTestOrder(t, "100")
	require.NoError(t, o.Accept("B-1"))

	require.NoError(t, o.ApplyFill(Fill{ID: "f1", Qty: decimal.NewFromInt(40), Price: decimal.RequireFromString("150")}))
	assert.Equal(t, StatusPartiallyFilled, o.Status)
	assert.True(t, o.FilledQty.Equal(decimal.NewFromInt(40)))
	assert.True(t, o.FilledQty.LessThanOrEqual(o.RequestedQty)) // filled never exceeds requested

	require.NoError(t, o.ApplyFill(Fill{ID: "f2", Qty: decimal.NewFromInt(60), Price: decimal.RequireFromString("152")}))
	assert.Equal(t, StatusFilled, o.Status)
	assert.True(t, o.FilledQty.Equal(o.RequestedQty))

	// avg = (40*150 + 60*152) / 100 = 151.2
	assert.True(t, o.AvgFillPrice.Equal(decimal.RequireFromString("151.2")), "got %s", o.AvgFillPrice)
}

func TestDuplicateFillIsIdempotent(t *testing.T) {
	o := newTestOrder(t, "100")
	require.NoError(t, o.Accept("B-1"))
	require.NoError(t, o.ApplyFill(Fill{ID: "f1", Qty: decimal.NewFromInt(100), Price: decimal.RequireFromString("150")}))
	require.Equal(t, StatusFilled, o.Status)

	before := o.FilledQty
	err := o.ApplyFill(Fill{ID: "f1", Qty: decimal.NewFromInt(100), Price: decimal.RequireFromString("150")})
	require.Error(t, err)
	var dup *DuplicateFill
	require.ErrorAs(t, err, &dup)
	assert.True(t, o.FilledQty.Equal(before)) // reapply is a no-op
	assert.Equal(t, StatusFilled, o.Status)   // terminal unaffected
}

func TestTerminalIsMonotonic(t *testing.T) {
	o := newTestOrder(t, "100")
	require.NoError(t, o.Accept("B-1"))
	require.NoError(t, o.Cancel())
	assert.True(t, o.Status.IsTerminal())

	// no transition succeeds from a terminal state.
	require.Error(t, o.Cancel())
	require.Error(t, o.Expire())
	require.Error(t, o.ApplyFill(Fill{ID: "f1", Qty: decimal.NewFromInt(1), Price: decimal.RequireFromString("150")}))
}

func TestCancelPreservesCumFilled(t *testing.T) {
	o := newTestOrder(t, "100")
	require.NoError(t, o.Accept("B-1"))
	require.NoError(t, o.ApplyFill(Fill{ID: "f1", Qty: decimal.NewFromInt(30), Price: decimal.RequireFromString("150")}))
	require.NoError(t, o.Cancel())
	assert.Equal(t, StatusCanceled, o.Status)
	assert.True(t, o.FilledQty.Equal(decimal.NewFromInt(30)))
}

func TestDrainEventsClears(t *testing.T) {
	o := newTestOrder(t, "100")
	require.NoError(t, o.Accept("B-1"))
	evts := o.DrainEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, EventAccepted, evts[0].Kind)
	assert.Empty(t, o.DrainEvents())
}
