package connmon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

func submitAndAccept(t *testing.T, store *orderstore.Store, paper *brokerpkg.Paper, clientID, symbol string, tif orders.TIF) {
	t.Helper()
	cmd := orders.CreateOrderCommand{
		ClientOrderId: money.ClientOrderId(clientID),
		Symbol:        money.Symbol(symbol),
		Side:          orders.SideBuy,
		Type:          orders.TypeLimit,
		TIF:           tif,
		Qty:           decimal.NewFromInt(1),
		LimitPrice:    decimal.NewFromInt(100),
		Purpose:       orders.PurposeEntry,
	}

	ack, err := paper.SubmitOrders(context.Background(), brokerpkg.SubmitOrdersRequest{Commands: []orders.CreateOrderCommand{cmd}})
	require.NoError(t, err)
	require.Len(t, ack.Orders, 1)

	o, err := orders.New(cmd)
	require.NoError(t, err)
	require.NoError(t, o.Accept(ack.Orders[0].BrokerOrderId))
	store.Insert(o)
}

// TestMassCancelExcludesGTC covers heartbeat failing for longer than the
// grace period with one Day and one GTC active order and GTCPolicy=Exclude
// — only the Day order is cancelled.
func TestMassCancelExcludesGTC(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	store := orderstore.New(nil)

	submitAndAccept(t, store, paper, "day-1", "AAPL", orders.TIFDay)
	submitAndAccept(t, store, paper, "gtc-1", "MSFT", orders.TIFGTC)

	paper.SetHealthy(false)

	mon := New(Config{
		HeartbeatInterval: 10 * time.Millisecond,
		GracePeriod:       30 * time.Millisecond,
		GTCPolicy:         GTCExclude,
	}, paper, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	var result MassCancelResult
	select {
	case result = <-mon.Results():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mass cancel result")
	}

	assert.Len(t, result.Cancelled, 1)
	assert.False(t, result.GTCIncluded)

	dayOrder, ok := store.Get(money.ClientOrderId("day-1"))
	require.True(t, ok)
	assert.Equal(t, orders.StatusCanceled, dayOrder.Status)

	gtcOrder, ok := store.Get(money.ClientOrderId("gtc-1"))
	require.True(t, ok)
	assert.NotEqual(t, orders.StatusCanceled, gtcOrder.Status)
}

func TestReconnectWithinGracePeriodEmitsGraceCancelledEvent(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	store := orderstore.New(nil)
	paper.SetHealthy(false)

	mon := New(Config{
		HeartbeatInterval: 10 * time.Millisecond,
		GracePeriod:       5 * time.Second,
		GTCPolicy:         GTCExclude,
	}, paper, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	paper.SetHealthy(true)

	select {
	case ev := <-mon.GraceEvents():
		assert.False(t, ev.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for grace-period-cancelled event")
	}
}

func TestManualTriggerForcesMassCancelImmediately(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	store := orderstore.New(nil)
	submitAndAccept(t, store, paper, "day-1", "AAPL", orders.TIFDay)

	mon := New(Config{
		HeartbeatInterval: time.Hour,
		GracePeriod:       time.Hour,
		GTCPolicy:         GTCInclude,
	}, paper, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	mon.TriggerManualMassCancel()

	select {
	case result := <-mon.Results():
		assert.Len(t, result.Cancelled, 1)
		assert.True(t, result.GTCIncluded)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for manual mass cancel result")
	}
}
