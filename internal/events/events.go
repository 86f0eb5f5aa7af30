// Package events defines the EventPublisher contract: domain events
// drained from Order aggregates and handed to a configurable Publisher,
// fire-and-forget. Covers exit results, mass-cancel outcomes,
// circuit-breaker trips, and raw order domain events.
package events

import (
	"github.com/web3guy0/execore/internal/connmon"
	"github.com/web3guy0/execore/internal/monitor"
	"github.com/web3guy0/execore/internal/orders"
)

// CircuitTripEvent reports a breaker leaving Closed for Open.
type CircuitTripEvent struct {
	BreakerName string
	Reason      string
}

// Publisher is the fire-and-forget sink every notification path writes to.
// Implementations must never block the caller.
type Publisher interface {
	PublishExitResult(monitor.ExitResult)
	PublishMassCancel(connmon.MassCancelResult)
	PublishDomainEvent(orders.DomainEvent)
	PublishCircuitTrip(CircuitTripEvent)
}

// NopPublisher discards every event; the zero-config default.
type NopPublisher struct{}

func (NopPublisher) PublishExitResult(monitor.ExitResult)         {}
func (NopPublisher) PublishMassCancel(connmon.MassCancelResult)   {}
func (NopPublisher) PublishDomainEvent(orders.DomainEvent)        {}
func (NopPublisher) PublishCircuitTrip(CircuitTripEvent)          {}
