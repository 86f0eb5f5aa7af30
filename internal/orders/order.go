// Package orders implements the order aggregate and its state machine:
// construction, acceptance, fills, cancellation, rejection and expiry,
// with a drained list of domain events.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// Side is the order's buy/sell direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type is the order's execution type.
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// TIF is the order's time-in-force.
type TIF string

const (
	TIFDay TIF = "DAY"
	TIFGTC TIF = "GTC"
	TIFIOC TIF = "IOC"
	TIFFOK TIF = "FOK"
)

// Purpose records why the order was submitted.
type Purpose string

const (
	PurposeEntry     Purpose = "ENTRY"
	PurposeExit      Purpose = "EXIT"
	PurposeStopLoss  Purpose = "STOP_LOSS"
	PurposeScaleIn   Purpose = "SCALE_IN"
	PurposeScaleOut  Purpose = "SCALE_OUT"
)

// Status is a point in the order's lifecycle. Terminal statuses never
// transition to a non-terminal one.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusAccepted        Status = "ACCEPTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusRejected        Status = "REJECTED"
	StatusExpired         Status = "EXPIRED"
)

// IsTerminal reports whether the status is one of {Filled, Canceled,
// Rejected, Expired}.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// CreateOrderCommand is the input to New. It carries InstrumentKind
// explicitly rather than relying on symbol-length heuristics.
type CreateOrderCommand struct {
	ClientOrderId  money.ClientOrderId
	Symbol         money.Symbol
	InstrumentKind money.InstrumentKind
	Side           Side
	Type           Type
	TIF            TIF
	Qty            decimal.Decimal
	LimitPrice     decimal.Decimal // zero means unset
	StopPrice      decimal.Decimal // zero means unset
	Purpose        Purpose
}

// Fill is one execution report applied to an order.
type Fill struct {
	ID    string
	Qty   decimal.Decimal
	Price decimal.Decimal
	TS    time.Time
	Venue string
}

// DomainEvent is an uncommitted fact emitted by the aggregate. Concrete
// event kinds are distinguished by Kind; Order carries the full post-event
// snapshot so an EventPublisher need not reach back into the aggregate.
type DomainEvent struct {
	Kind  string
	Order Order
	TS    time.Time
}

const (
	EventAccepted         = "order.accepted"
	EventRejected         = "order.rejected"
	EventPartiallyFilled  = "order.partially_filled"
	EventFilled           = "order.filled"
	EventCanceled         = "order.canceled"
	EventExpired          = "order.expired"
)

// InvalidError reports a construction-time invariant violation.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return fmt.Sprintf("invalid order: %s", e.Reason) }

// IllegalTransitionError reports an attempted transition out of a terminal
// state, or any other transition the state machine does not allow.
type IllegalTransitionError struct {
	From  Status
	Event string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s from %s", e.Event, e.From)
}

// Order is the order aggregate. PartialFillState from the
// reference system is folded in here as the fills slice plus the derived
// filledQty/avgFillPrice fields.
type Order struct {
	ClientOrderId money.ClientOrderId
	BrokerOrderId money.BrokerOrderId // empty until accept()

	Symbol         money.Symbol
	InstrumentKind money.InstrumentKind
	Side           Side
	Type           Type
	TIF            TIF
	Purpose        Purpose

	RequestedQty decimal.Decimal
	LimitPrice   decimal.Decimal
	StopPrice    decimal.Decimal

	Status       Status
	FilledQty    decimal.Decimal
	AvgFillPrice decimal.Decimal

	CreatedAt  time.Time
	AcceptedAt time.Time
	UpdatedAt  time.Time

	RejectReason string

	appliedFills map[string]bool
	events       []DomainEvent
}

// New validates the command and constructs a new Order in StatusNew.
func New(cmd CreateOrderCommand) (*Order, error) {
	if cmd.Qty.LessThanOrEqual(decimal.Zero) {
		return nil, &InvalidError{Reason: "qty must be positive"}
	}
	if cmd.ClientOrderId == "" {
		return nil, &InvalidError{Reason: "client order id required"}
	}
	switch cmd.Type {
	case TypeLimit:
		if cmd.LimitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, &InvalidError{Reason: "limit order requires a limit price"}
		}
	case TypeStop:
		if cmd.StopPrice.LessThanOrEqual(decimal.Zero) {
			return nil, &InvalidError{Reason: "stop order requires a stop price"}
		}
	case TypeStopLimit:
		if cmd.StopPrice.LessThanOrEqual(decimal.Zero) || cmd.LimitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, &InvalidError{Reason: "stop-limit order requires both stop and limit price"}
		}
	case TypeMarket:
		// no price required
	default:
		return nil, &InvalidError{Reason: "unknown order type"}
	}
	if cmd.Side != SideBuy && cmd.Side != SideSell {
		return nil, &InvalidError{Reason: "side must be buy or sell"}
	}

	now := time.Now()
	return &Order{
		ClientOrderId:  cmd.ClientOrderId,
		Symbol:         cmd.Symbol,
		InstrumentKind: cmd.InstrumentKind,
		Side:           cmd.Side,
		Type:           cmd.Type,
		TIF:            cmd.TIF,
		Purpose:        cmd.Purpose,
		RequestedQty:   cmd.Qty,
		LimitPrice:     cmd.LimitPrice,
		StopPrice:      cmd.StopPrice,
		Status:         StatusNew,
		FilledQty:      decimal.Zero,
		AvgFillPrice:   decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
		appliedFills:   make(map[string]bool),
	}, nil
}

func (o *Order) emit(kind string) {
	o.events = append(o.events, DomainEvent{Kind: kind, Order: *o, TS: time.Now()})
}

// ResetFillDedup reinitializes the applied-fill dedup set. Fill-level
// dedup state is not persisted, so a rehydrated Order must call this
// before any ApplyFill — otherwise the first fill after restart panics
// on a nil map write.
func (o *Order) ResetFillDedup() {
	o.appliedFills = make(map[string]bool)
}

// DrainEvents returns and clears the uncommitted domain event list.
func (o *Order) DrainEvents() []DomainEvent {
	evts := o.events
	o.events = nil
	return evts
}

// Accept moves New -> Accepted and sets BrokerOrderId exactly once.
func (o *Order) Accept(brokerID money.BrokerOrderId) error {
	if o.Status != StatusNew {
		return &IllegalTransitionError{From: o.Status, Event: "accept"}
	}
	o.BrokerOrderId = brokerID
	o.Status = StatusAccepted
	o.AcceptedAt = time.Now()
	o.UpdatedAt = o.AcceptedAt
	o.emit(EventAccepted)
	return nil
}

// Reject moves New -> Rejected (terminal).
func (o *Order) Reject(reason string) error {
	if o.Status != StatusNew {
		return &IllegalTransitionError{From: o.Status, Event: "reject"}
	}
	o.Status = StatusRejected
	o.RejectReason = reason
	o.UpdatedAt = time.Now()
	o.emit(EventRejected)
	return nil
}

// Cancel moves Accepted/PartiallyFilled -> Canceled, preserving cum_filled.
func (o *Order) Cancel() error {
	if o.Status.IsTerminal() {
		return &IllegalTransitionError{From: o.Status, Event: "cancel"}
	}
	if o.Status != StatusAccepted && o.Status != StatusPartiallyFilled {
		return &IllegalTransitionError{From: o.Status, Event: "cancel"}
	}
	o.Status = StatusCanceled
	o.UpdatedAt = time.Now()
	o.emit(EventCanceled)
	return nil
}

// Expire moves Accepted/PartiallyFilled -> Expired (TIF-driven).
func (o *Order) Expire() error {
	if o.Status != StatusAccepted && o.Status != StatusPartiallyFilled {
		return &IllegalTransitionError{From: o.Status, Event: "expire"}
	}
	o.Status = StatusExpired
	o.UpdatedAt = time.Now()
	o.emit(EventExpired)
	return nil
}

// ApplyFill folds a fill into the aggregate. Reapplying a previously seen
// fill ID leaves the order unchanged (exactly-once semantics on the fill
// stream) and returns a *DuplicateFill so the caller can observe it.
type DuplicateFill struct{ ID string }

func (e *DuplicateFill) Error() string { return fmt.Sprintf("duplicate fill: %s", e.ID) }

func (o *Order) ApplyFill(f Fill) error {
	if o.appliedFills[f.ID] {
		return &DuplicateFill{ID: f.ID}
	}
	if o.Status.IsTerminal() {
		return &IllegalTransitionError{From: o.Status, Event: "apply_fill"}
	}
	if o.Status != StatusAccepted && o.Status != StatusPartiallyFilled {
		return &IllegalTransitionError{From: o.Status, Event: "apply_fill"}
	}
	if f.Qty.LessThanOrEqual(decimal.Zero) {
		return &InvalidError{Reason: "fill qty must be positive"}
	}

	remaining := o.RequestedQty.Sub(o.FilledQty)
	applyQty := f.Qty
	if applyQty.GreaterThan(remaining) {
		applyQty = remaining
	}

	o.AvgFillPrice = money.WeightedAverage(o.AvgFillPrice, o.FilledQty, applyQty, f.Price)
	o.FilledQty = o.FilledQty.Add(applyQty)
	o.appliedFills[f.ID] = true
	o.UpdatedAt = f.TS
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now()
	}

	if o.FilledQty.GreaterThanOrEqual(o.RequestedQty) {
		o.Status = StatusFilled
		o.emit(EventFilled)
	} else {
		o.Status = StatusPartiallyFilled
		o.emit(EventPartiallyFilled)
	}
	return nil
}

// RemainingQty is RequestedQty - FilledQty.
func (o *Order) RemainingQty() decimal.Decimal {
	return o.RequestedQty.Sub(o.FilledQty)
}
