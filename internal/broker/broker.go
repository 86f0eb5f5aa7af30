// Package broker defines the BrokerAdapter contract that the
// execution gateway and other core components talk to, plus errors a broker
// implementation may return. It carries no concrete wire format — that is
// deliberately out of scope — only the shape every broker
// implementation (paper, live) must fulfil.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
	"github.com/web3guy0/execore/internal/orders"
)

// ErrorKind classifies a broker failure without leaking a specific broker's
// wire format into the core.
type ErrorKind string

const (
	ErrHTTP               ErrorKind = "HTTP"
	ErrOrderNotFound      ErrorKind = "ORDER_NOT_FOUND"
	ErrOrderRejected      ErrorKind = "ORDER_REJECTED"
	ErrOrderNotCancelable ErrorKind = "ORDER_NOT_CANCELABLE"
	ErrNetwork            ErrorKind = "NETWORK"
	ErrUnknown            ErrorKind = "UNKNOWN"
	ErrCircuitOpen        ErrorKind = "CIRCUIT_OPEN"
)

// Error is the broker-originated error kind the gateway inspects to decide
// breaker bookkeeping: rejections don't trip the breaker, transport
// errors do.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// TripsBreaker reports whether this error kind should count against the
// broker's circuit breaker: OrderRejected does not, transport
// errors do.
func (e *Error) TripsBreaker() bool {
	switch e.Kind {
	case ErrHTTP, ErrNetwork, ErrUnknown:
		return true
	default:
		return false
	}
}

// SubmitOrdersRequest carries one or more new orders in a single broker
// round-trip, correlated by CycleID.
type SubmitOrdersRequest struct {
	CycleID  string
	Commands []orders.CreateOrderCommand
}

// OrderAck is the broker's view of one order, returned by submit, cancel,
// refresh, and get_open_orders.
type OrderAck struct {
	ClientOrderId money.ClientOrderId
	BrokerOrderId money.BrokerOrderId
	Symbol        money.Symbol
	Status        orders.Status
	FilledQty     decimal.Decimal
	AvgFillPrice  decimal.Decimal
	RejectReason  string
}

// OrderSubmitError reports a single order's rejection within an
// ExecutionAck — per-order, does not trip the breaker.
type OrderSubmitError struct {
	ClientOrderId money.ClientOrderId
	Reason        string
}

// ExecutionAck is the broker's response to SubmitOrders.
type ExecutionAck struct {
	CycleID string
	Env     string
	AckTime time.Time
	Orders  []OrderAck
	Errors  []OrderSubmitError
}

// Adapter is the capability set any broker implementation declares
// (capability-set polymorphism, no trait-object dispatch). All methods may
// fail with a *Error.
type Adapter interface {
	SubmitOrders(ctx context.Context, req SubmitOrdersRequest) (ExecutionAck, error)
	CancelOrder(ctx context.Context, brokerOrderId money.BrokerOrderId) error
	GetOrderStatus(ctx context.Context, brokerOrderId money.BrokerOrderId) (OrderAck, error)
	GetOpenOrders(ctx context.Context) ([]OrderAck, error)
	HealthCheck(ctx context.Context) error
	BrokerName() string
}
