package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/execore/internal/breaker"
	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

// TestHappySubmit covers a clean submit-and-accept round trip.
func TestHappySubmit(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	paper.AutoFill = false // Accepted, not auto-filled — matches S1's exact expectation

	store := orderstore.New(nil)
	cb := breaker.New("paper", breaker.DefaultConfig())
	gw := New(paper, store, cb, nil, nil)

	req := SubmitOrdersRequest{
		CycleID: "cyc-1",
		Commands: []orders.CreateOrderCommand{{
			ClientOrderId: "c1",
			Symbol:        "AAPL",
			Side:          orders.SideBuy,
			Type:          orders.TypeLimit,
			TIF:           orders.TIFDay,
			Qty:           decimal.NewFromInt(100),
			LimitPrice:    decimal.NewFromInt(150),
			Purpose:       orders.PurposeEntry,
		}},
	}

	ack, err := gw.SubmitOrders(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, ack.Orders, 1)
	assert.Equal(t, orders.StatusAccepted, ack.Orders[0].Status)

	active := gw.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, money.ClientOrderId("c1"), active[0].ClientOrderId)
}

func TestCancelOrderNotFound(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	store := orderstore.New(nil)
	cb := breaker.New("paper", breaker.DefaultConfig())
	gw := New(paper, store, cb, nil, nil)

	err := gw.CancelOrder(context.Background(), "nope")
	require.Error(t, err)
	var ce *CancelError
	require.ErrorAs(t, err, &ce)
}

func TestCancelOrderSucceeds(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	paper.AutoFill = false
	store := orderstore.New(nil)
	cb := breaker.New("paper", breaker.DefaultConfig())
	gw := New(paper, store, cb, nil, nil)

	ack, err := gw.SubmitOrders(context.Background(), SubmitOrdersRequest{
		Commands: []orders.CreateOrderCommand{{
			ClientOrderId: "c2",
			Symbol:        "AAPL",
			Side:          orders.SideBuy,
			Type:          orders.TypeLimit,
			TIF:           orders.TIFDay,
			Qty:           decimal.NewFromInt(10),
			LimitPrice:    decimal.NewFromInt(100),
			Purpose:       orders.PurposeEntry,
		}},
	})
	require.NoError(t, err)
	brokerID := ack.Orders[0].BrokerOrderId

	require.NoError(t, gw.CancelOrder(context.Background(), brokerID))

	o, ok := store.GetByBroker(brokerID)
	require.True(t, ok)
	assert.Equal(t, orders.StatusCanceled, o.Status)
}

func TestSubmitOrdersFailsFastWhenCircuitOpen(t *testing.T) {
	paper := brokerpkg.NewPaper(nil)
	store := orderstore.New(nil)
	cb := breaker.New("paper", breaker.DefaultConfig())
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	gw := New(paper, store, cb, nil, nil)

	_, err := gw.SubmitOrders(context.Background(), SubmitOrdersRequest{})
	require.Error(t, err)
	var be *brokerpkg.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, brokerpkg.ErrCircuitOpen, be.Kind)
}
