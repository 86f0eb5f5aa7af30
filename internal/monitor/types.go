// Package monitor implements PositionMonitor, the stop/target enforcement
// subsystem: since bracket orders cover equities at the broker but options
// lack them, open option positions are watched in-engine and an exit
// market order is sent when a stop or target price is crossed.
package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// Direction is the position's side relative to its entry.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// StopTargetLevels are the three watched prices for one monitored position.
type StopTargetLevels struct {
	Entry  decimal.Decimal
	Stop   decimal.Decimal
	Target decimal.Decimal
}

// Validate enforces : Long needs stop < entry < target; Short needs
// target < entry < stop.
func (l StopTargetLevels) Validate(dir Direction) error {
	switch dir {
	case DirectionLong:
		if !(l.Stop.LessThan(l.Entry) && l.Entry.LessThan(l.Target)) {
			return fmt.Errorf("long levels must satisfy stop < entry < target, got stop=%s entry=%s target=%s", l.Stop, l.Entry, l.Target)
		}
	case DirectionShort:
		if !(l.Target.LessThan(l.Entry) && l.Entry.LessThan(l.Stop)) {
			return fmt.Errorf("short levels must satisfy target < entry < stop, got target=%s entry=%s stop=%s", l.Target, l.Entry, l.Stop)
		}
	default:
		return fmt.Errorf("unknown direction %q", dir)
	}
	return nil
}

// MonitoredPosition is one position PositionMonitor watches for a stop or
// target trigger.
type MonitoredPosition struct {
	PositionId     money.PositionId
	Instrument     money.InstrumentId
	Symbol         money.Symbol
	InstrumentKind money.InstrumentKind
	Qty            decimal.Decimal
	Direction      Direction
	Levels         StopTargetLevels
}

// TriggerKind distinguishes which level fired.
type TriggerKind string

const (
	TriggerStopLoss   TriggerKind = "stop_loss"
	TriggerTakeProfit TriggerKind = "take_profit"
)

// TriggerResult is one fired trigger from PriceMonitor.CheckPrice. It
// carries enough of the triggering position's detail to build the exit
// order, since the position is removed from the monitor as part of the
// same call.
type TriggerResult struct {
	PositionId     money.PositionId
	Instrument     money.InstrumentId
	Symbol         money.Symbol
	InstrumentKind money.InstrumentKind
	Qty            decimal.Decimal
	Direction      Direction
	Kind           TriggerKind
	Price          decimal.Decimal
}

// ExitResult is published for every exit attempt, successful or not.
type ExitResult struct {
	PositionId money.PositionId
	Success    bool
	Trigger    TriggerKind
	Price      decimal.Decimal
	Error      string
	TS         time.Time
}
