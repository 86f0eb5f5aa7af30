package orderstore

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
)

type fakeMirror struct {
	mu    sync.Mutex
	saved []orders.Order
}

func (m *fakeMirror) SaveOrder(o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, o)
	return nil
}

func (m *fakeMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func newOrder(t *testing.T, id string) *orders.Order {
	t.Helper()
	o, err := orders.New(orders.CreateOrderCommand{
		ClientOrderId: money.ClientOrderId(id),
		Symbol:        "AAPL",
		Side:          orders.SideBuy,
		Type:          orders.TypeMarket,
		TIF:           orders.TIFDay,
		Qty:           decimal.NewFromInt(100),
		Purpose:       orders.PurposeEntry,
	})
	require.NoError(t, err)
	return o
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestInsertAndGet(t *testing.T) {
	mirror := &fakeMirror{}
	s := New(mirror)
	o := newOrder(t, "c1")
	s.Insert(o)

	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, money.ClientOrderId("c1"), got.ClientOrderId)

	waitFor(t, func() bool { return mirror.count() == 1 })
}

func TestUpdateByBrokerIndex(t *testing.T) {
	s := New(nil)
	o := newOrder(t, "c1")
	require.NoError(t, o.Accept("B-1"))
	s.Insert(o)

	got, ok := s.GetByBroker("B-1")
	require.True(t, ok)
	assert.Equal(t, money.ClientOrderId("c1"), got.ClientOrderId)
}

func TestGetActiveExcludesTerminal(t *testing.T) {
	s := New(nil)
	o1 := newOrder(t, "c1")
	require.NoError(t, o1.Accept("B-1"))
	s.Insert(o1)

	o2 := newOrder(t, "c2")
	require.NoError(t, o2.Accept("B-2"))
	require.NoError(t, o2.Cancel())
	s.Insert(o2)

	active := s.GetActive()
	require.Len(t, active, 1)
	assert.Equal(t, money.ClientOrderId("c1"), active[0].ClientOrderId)
}

func TestGetManyAndAll(t *testing.T) {
	s := New(nil)
	s.Insert(newOrder(t, "c1"))
	s.Insert(newOrder(t, "c2"))

	got := s.GetMany([]money.ClientOrderId{"c1", "missing"})
	require.Len(t, got, 1)

	assert.Len(t, s.All(), 2)
}
