package reconcile

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

// TestReconciliationCatchesMissedFill covers a broker fill the local store
// never observed getting synthesized on reconciliation.
func TestReconciliationCatchesMissedFill(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	paper.AutoFill = false
	store := orderstore.New(nil)

	cmd := orders.CreateOrderCommand{
		ClientOrderId: "c-100",
		Symbol:        "AAPL",
		Side:          orders.SideBuy,
		Type:          orders.TypeLimit,
		TIF:           orders.TIFDay,
		Qty:           decimal.NewFromInt(100),
		LimitPrice:    decimal.NewFromInt(150),
		Purpose:       orders.PurposeEntry,
	}
	ack, err := paper.SubmitOrders(context.Background(), brokerpkg.SubmitOrdersRequest{Commands: []orders.CreateOrderCommand{cmd}})
	require.NoError(t, err)
	brokerID := ack.Orders[0].BrokerOrderId

	o, err := orders.New(cmd)
	require.NoError(t, err)
	require.NoError(t, o.Accept(brokerID))
	store.Insert(o) // local: Accepted, cum_filled=0

	require.NoError(t, paper.FillOrder(brokerID, decimal.NewFromInt(100), decimal.NewFromInt(150)))

	uc := New(paper, store)
	result := uc.Run(context.Background())

	require.Equal(t, 1, result.TotalChecked)
	assert.Equal(t, 1, result.Mismatches)
	assert.Equal(t, 1, result.Reconciled)
	require.Len(t, result.PerOrder, 1)
	assert.Equal(t, MismatchFillGap, result.PerOrder[0].Mismatch)

	final, ok := store.Get("c-100")
	require.True(t, ok)
	assert.Equal(t, orders.StatusFilled, final.Status)
	assert.True(t, final.FilledQty.Equal(decimal.NewFromInt(100)))
}

// TestReconciliationIsIdempotent covers running reconciliation twice with
// no intervening broker change: the second run must be a no-op.
func TestReconciliationIsIdempotent(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	paper.AutoFill = false
	store := orderstore.New(nil)

	cmd := orders.CreateOrderCommand{
		ClientOrderId: "c-200",
		Symbol:        "AAPL",
		Side:          orders.SideBuy,
		Type:          orders.TypeLimit,
		TIF:           orders.TIFDay,
		Qty:           decimal.NewFromInt(50),
		LimitPrice:    decimal.NewFromInt(10),
		Purpose:       orders.PurposeEntry,
	}
	ack, err := paper.SubmitOrders(context.Background(), brokerpkg.SubmitOrdersRequest{Commands: []orders.CreateOrderCommand{cmd}})
	require.NoError(t, err)
	brokerID := ack.Orders[0].BrokerOrderId

	o, err := orders.New(cmd)
	require.NoError(t, err)
	require.NoError(t, o.Accept(brokerID))
	store.Insert(o)

	require.NoError(t, paper.FillOrder(brokerID, decimal.NewFromInt(30), decimal.NewFromInt(10)))

	uc := New(paper, store)
	first := uc.Run(context.Background())
	assert.Equal(t, 1, first.Reconciled)

	second := uc.Run(context.Background())
	assert.Equal(t, 0, second.Reconciled)
	assert.Equal(t, 0, second.Mismatches)
}

func TestReconcileOrphanedOrderSurfacesMismatchWithoutAutoCancel(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	store := orderstore.New(nil)

	cmd := orders.CreateOrderCommand{
		ClientOrderId: "c-300",
		Symbol:        "MSFT",
		Side:          orders.SideBuy,
		Type:          orders.TypeLimit,
		TIF:           orders.TIFDay,
		Qty:           decimal.NewFromInt(10),
		LimitPrice:    decimal.NewFromInt(300),
		Purpose:       orders.PurposeEntry,
	}
	o, err := orders.New(cmd)
	require.NoError(t, err)
	require.NoError(t, o.Accept(money.BrokerOrderId("B-NEVER-SUBMITTED")))
	store.Insert(o)

	uc := New(paper, store)
	result := uc.Run(context.Background())

	require.Len(t, result.PerOrder, 1)
	assert.Equal(t, MismatchOrphanedLocally, result.PerOrder[0].Mismatch)

	still, ok := store.Get("c-300")
	require.True(t, ok)
	assert.Equal(t, orders.StatusAccepted, still.Status) // never auto-cancelled locally
}
