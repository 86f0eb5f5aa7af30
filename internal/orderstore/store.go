// Package orderstore implements the process-wide order index:
// a thread-safe map keyed by ClientOrderId with a secondary BrokerOrderId
// index and an "active" (non-terminal) view. Grounded on the
// RWMutex-guarded Executor.orders map (execution/executor.go), split out
// into its own composition-root singleton.
package orderstore

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
)

// Mirror is the write-through persistence contract. Failures
// are logged, never fail the in-memory write — recoverable via
// reconciliation.
type Mirror interface {
	SaveOrder(o orders.Order) error
}

// Store is the process-wide order index. Readers do not block each other;
// any read-modify-write sequence is the caller's responsibility (the
// gateway reads, mutates the aggregate, then calls Update).
type Store struct {
	mu          sync.RWMutex
	byClient    map[money.ClientOrderId]*orders.Order
	byBroker    map[money.BrokerOrderId]money.ClientOrderId
	mirror      Mirror
}

// New creates an empty store. mirror may be nil (no persistence).
func New(mirror Mirror) *Store {
	return &Store{
		byClient: make(map[money.ClientOrderId]*orders.Order),
		byBroker: make(map[money.BrokerOrderId]money.ClientOrderId),
		mirror:   mirror,
	}
}

// Insert adds a new order to the index and persists it best-effort.
func (s *Store) Insert(o *orders.Order) {
	s.mu.Lock()
	cp := *o
	s.byClient[o.ClientOrderId] = &cp
	if o.BrokerOrderId != "" {
		s.byBroker[o.BrokerOrderId] = o.ClientOrderId
	}
	s.mu.Unlock()

	s.persist(cp)
}

// Update replaces the stored order keyed by its ClientOrderId (full
// replacement, per ).
func (s *Store) Update(o *orders.Order) {
	s.mu.Lock()
	cp := *o
	s.byClient[o.ClientOrderId] = &cp
	if o.BrokerOrderId != "" {
		s.byBroker[o.BrokerOrderId] = o.ClientOrderId
	}
	s.mu.Unlock()

	s.persist(cp)
}

func (s *Store) persist(o orders.Order) {
	if s.mirror == nil {
		return
	}
	// Fire-and-forget: persistence failures are a Warning, never fail the
	// in-memory write.
	go func() {
		if err := s.mirror.SaveOrder(o); err != nil {
			log.Warn().Err(err).Str("client_order_id", string(o.ClientOrderId)).Msg("persist order failed")
		}
	}()
}

// Get returns a copy of the order by client id, or false if absent.
func (s *Store) Get(id money.ClientOrderId) (orders.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byClient[id]
	if !ok {
		return orders.Order{}, false
	}
	return *o, true
}

// GetByBroker returns a copy of the order by broker id, or false if absent.
func (s *Store) GetByBroker(id money.BrokerOrderId) (orders.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clientID, ok := s.byBroker[id]
	if !ok {
		return orders.Order{}, false
	}
	o, ok := s.byClient[clientID]
	if !ok {
		return orders.Order{}, false
	}
	return *o, true
}

// GetMany returns copies of every order found for the given ids.
func (s *Store) GetMany(ids []money.ClientOrderId) []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.byClient[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// GetActive returns copies of every non-terminal order.
func (s *Store) GetActive() []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Order, 0)
	for _, o := range s.byClient {
		if !o.Status.IsTerminal() {
			out = append(out, *o)
		}
	}
	return out
}

// All returns copies of every order, terminal or not, for query/audit use.
func (s *Store) All() []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Order, 0, len(s.byClient))
	for _, o := range s.byClient {
		out = append(out, *o)
	}
	return out
}
