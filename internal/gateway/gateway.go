// Package gateway implements ExecutionGateway: the single
// write path from an approved plan to the broker, the single cancel path,
// and the refresh path. Generalizes execution.Executor
// (SubmitOrder/ClosePosition/GetMetrics) into a gateway wired to a breaker,
// a store, and a stops enforcer. The gateway holds no constraint validator
// and runs no validation; callers run the validator themselves.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/breaker"
	brokerpkg "github.com/web3guy0/execore/internal/broker"
	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/monitor"
	"github.com/web3guy0/execore/internal/orders"
	"github.com/web3guy0/execore/internal/orderstore"
)

// StopsEnforcer is the capability the gateway registers options stop/target
// levels with; satisfied by *monitor.Enforcer. The gateway holds
// it directly and the monitor holds the broker directly — no ownership
// cycle.
type StopsEnforcer interface {
	RegisterPosition(pos monitor.MonitoredPosition) error
}

// StopTarget is the optional per-order stop/target registration the caller
// supplies alongside a CreateOrderCommand when the position may need
// in-engine enforcement.
type StopTarget struct {
	PositionId money.PositionId
	Direction  monitor.Direction
	Levels     monitor.StopTargetLevels
}

// SubmitOrdersRequest is the gateway's entry point, carrying a batch of
// commands and their optional stop/target registrations keyed by
// ClientOrderId.
type SubmitOrdersRequest struct {
	CycleID     string
	Commands    []orders.CreateOrderCommand
	StopTargets map[money.ClientOrderId]StopTarget
}

// SubmitError wraps a broker failure from submit_orders. A call denied by
// the breaker returns a *broker.Error of kind ErrCircuitOpen instead.
type SubmitError struct{ Err error }

func (e *SubmitError) Error() string { return fmt.Sprintf("submit orders failed: %v", e.Err) }
func (e *SubmitError) Unwrap() error { return e.Err }

// CancelError reports the gateway's own OrderNotFound / OrderNotCancelable
// cases. Errors from the broker itself are returned as they come.
type CancelError struct{ Reason string }

func (e *CancelError) Error() string { return e.Reason }

// NativeBracketClassifier reports whether the broker provides native
// bracket orders for an instrument kind, so the gateway can skip
// in-engine stop/target registration for it: a callable, not a
// string-length heuristic.
type NativeBracketClassifier func(kind money.InstrumentKind) bool

// DefaultNativeBracketClassifier treats equities as broker-bracket-capable
// and options as requiring in-engine enforcement.
func DefaultNativeBracketClassifier(kind money.InstrumentKind) bool {
	return kind == money.InstrumentEquity
}

// Gateway is the single entry point for order submission, cancellation,
// and state refresh.
type Gateway struct {
	broker     brokerpkg.Adapter
	store      *orderstore.Store
	cb         *breaker.Breaker
	enforcer   StopsEnforcer
	classifier NativeBracketClassifier
}

// New wires a Gateway. classifier may be nil to use
// DefaultNativeBracketClassifier.
func New(brk brokerpkg.Adapter, store *orderstore.Store, cb *breaker.Breaker, enforcer StopsEnforcer, classifier NativeBracketClassifier) *Gateway {
	if classifier == nil {
		classifier = DefaultNativeBracketClassifier
	}
	return &Gateway{broker: brk, store: store, cb: cb, enforcer: enforcer, classifier: classifier}
}

// NewClientOrderId mints a collision-resistant idempotent client order id,
// generalizing fmt.Sprintf("PB_%d_...", time.Now().UnixNano())
// ad hoc scheme (— idempotent client IDs are the core's only
// exactly-once guarantee).
func NewClientOrderId() money.ClientOrderId {
	return money.ClientOrderId(uuid.New().String())
}

// SubmitOrders is the single write path from an approved plan to the
// broker. The gateway does not re-run constraint validation —
// callers that want that invoke the validator explicitly beforehand.
func (g *Gateway) SubmitOrders(ctx context.Context, req SubmitOrdersRequest) (brokerpkg.ExecutionAck, error) {
	if !g.cb.IsCallPermitted() {
		return brokerpkg.ExecutionAck{}, &brokerpkg.Error{Kind: brokerpkg.ErrCircuitOpen, Msg: "broker circuit open"}
	}

	ack, err := g.broker.SubmitOrders(ctx, brokerpkg.SubmitOrdersRequest{CycleID: req.CycleID, Commands: req.Commands})
	if err != nil {
		if be, ok := err.(*brokerpkg.Error); ok && be.TripsBreaker() {
			g.cb.RecordFailure()
		}
		return brokerpkg.ExecutionAck{}, &SubmitError{Err: err}
	}
	g.cb.RecordSuccess()

	cmdByClientID := make(map[money.ClientOrderId]orders.CreateOrderCommand, len(req.Commands))
	for _, cmd := range req.Commands {
		cmdByClientID[cmd.ClientOrderId] = cmd
	}

	for _, oa := range ack.Orders {
		cmd, ok := cmdByClientID[oa.ClientOrderId]
		if !ok {
			continue
		}
		order, err := orders.New(cmd)
		if err != nil {
			log.Warn().Err(err).Str("client_id", string(oa.ClientOrderId)).Msg("submitted order failed local reconstruction")
			continue
		}
		if err := applyAck(order, oa); err != nil {
			log.Warn().Err(err).Str("client_id", string(oa.ClientOrderId)).Msg("applying broker ack to local order failed")
			continue
		}
		g.store.Insert(order)

		g.registerStopsIfNeeded(cmd, oa, req.StopTargets[oa.ClientOrderId])
	}

	return ack, nil
}

func applyAck(order *orders.Order, oa brokerpkg.OrderAck) error {
	if oa.Status == orders.StatusRejected {
		return order.Reject(oa.RejectReason)
	}
	if err := order.Accept(oa.BrokerOrderId); err != nil {
		return err
	}
	if oa.FilledQty.GreaterThan(decimal.Zero) {
		return order.ApplyFill(orders.Fill{
			ID:    fmt.Sprintf("submit-ack-%s", oa.BrokerOrderId),
			Qty:   oa.FilledQty,
			Price: oa.AvgFillPrice,
			TS:    time.Now(),
		})
	}
	return nil
}

func (g *Gateway) registerStopsIfNeeded(cmd orders.CreateOrderCommand, oa brokerpkg.OrderAck, st StopTarget) {
	if st.Levels == (monitor.StopTargetLevels{}) || g.enforcer == nil {
		return
	}
	if g.classifier(cmd.InstrumentKind) {
		return // broker-native bracket covers this instrument kind
	}
	pos := monitor.MonitoredPosition{
		PositionId:     st.PositionId,
		Instrument:     money.InstrumentId(cmd.Symbol),
		Symbol:         cmd.Symbol,
		InstrumentKind: cmd.InstrumentKind,
		Qty:            cmd.Qty,
		Direction:      st.Direction,
		Levels:         st.Levels,
	}
	if err := g.enforcer.RegisterPosition(pos); err != nil {
		log.Warn().Err(err).Str("position", string(st.PositionId)).Msg("stop/target registration failed")
	}
}

// CancelOrder is the single cancel path.
func (g *Gateway) CancelOrder(ctx context.Context, brokerOrderId money.BrokerOrderId) error {
	if !g.cb.IsCallPermitted() {
		return &brokerpkg.Error{Kind: brokerpkg.ErrCircuitOpen, Msg: "broker circuit open"}
	}

	order, ok := g.store.GetByBroker(brokerOrderId)
	if !ok {
		return &CancelError{Reason: fmt.Sprintf("order not found: %s", brokerOrderId)}
	}
	if order.Status.IsTerminal() {
		return &CancelError{Reason: fmt.Sprintf("order not cancelable, already %s", order.Status)}
	}

	if err := g.broker.CancelOrder(ctx, brokerOrderId); err != nil {
		if be, ok := err.(*brokerpkg.Error); ok && be.TripsBreaker() {
			g.cb.RecordFailure()
		}
		return err
	}
	g.cb.RecordSuccess()

	if err := order.Cancel(); err != nil {
		return err
	}
	g.store.Update(&order)
	return nil
}

// RefreshOrderState fetches broker truth and updates the store.
func (g *Gateway) RefreshOrderState(ctx context.Context, brokerOrderId money.BrokerOrderId) (orders.Order, error) {
	if !g.cb.IsCallPermitted() {
		return orders.Order{}, &brokerpkg.Error{Kind: brokerpkg.ErrCircuitOpen, Msg: "broker circuit open"}
	}

	oa, err := g.broker.GetOrderStatus(ctx, brokerOrderId)
	if err != nil {
		if be, ok := err.(*brokerpkg.Error); ok && be.TripsBreaker() {
			g.cb.RecordFailure()
		}
		return orders.Order{}, err
	}
	g.cb.RecordSuccess()

	order, ok := g.store.GetByBroker(brokerOrderId)
	if !ok {
		return orders.Order{}, &CancelError{Reason: fmt.Sprintf("order not found: %s", brokerOrderId)}
	}
	if err := syncOrderToAck(&order, oa); err != nil {
		return orders.Order{}, err
	}
	g.store.Update(&order)
	return order, nil
}

func syncOrderToAck(order *orders.Order, oa brokerpkg.OrderAck) error {
	switch oa.Status {
	case orders.StatusRejected:
		if order.Status == orders.StatusNew {
			return order.Reject(oa.RejectReason)
		}
	case orders.StatusCanceled:
		if !order.Status.IsTerminal() {
			return order.Cancel()
		}
	default:
		delta := oa.FilledQty.Sub(order.FilledQty)
		if delta.GreaterThan(decimal.Zero) {
			return order.ApplyFill(orders.Fill{
				ID:    fmt.Sprintf("refresh-%s-%s", oa.BrokerOrderId, oa.FilledQty.String()),
				Qty:   delta,
				Price: oa.AvgFillPrice,
				TS:    time.Now(),
			})
		}
	}
	return nil
}

// GetActiveOrders reads through to the store.
func (g *Gateway) GetActiveOrders() []orders.Order { return g.store.GetActive() }

// GetOrderStates reads through to the store.
func (g *Gateway) GetOrderStates(ids []money.ClientOrderId) []orders.Order { return g.store.GetMany(ids) }
