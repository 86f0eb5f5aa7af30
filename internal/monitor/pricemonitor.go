package monitor

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// PriceMonitor holds every currently-watched position, indexed both by
// position id and by symbol, and implements the per-tick trigger check.
type PriceMonitor struct {
	mu          sync.RWMutex
	positions   map[money.PositionId]MonitoredPosition
	bySymbol    map[money.Symbol]map[money.PositionId]bool
}

// NewPriceMonitor constructs an empty monitor.
func NewPriceMonitor() *PriceMonitor {
	return &PriceMonitor{
		positions: make(map[money.PositionId]MonitoredPosition),
		bySymbol:  make(map[money.Symbol]map[money.PositionId]bool),
	}
}

// Register inserts pos, validating its stop/target levels.
func (m *PriceMonitor) Register(pos MonitoredPosition) error {
	if err := pos.Levels.Validate(pos.Direction); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.PositionId] = pos
	if m.bySymbol[pos.Symbol] == nil {
		m.bySymbol[pos.Symbol] = make(map[money.PositionId]bool)
	}
	m.bySymbol[pos.Symbol][pos.PositionId] = true
	return nil
}

// Remove deletes a position from the monitor and its symbol index, and
// reports whether any positions remain for that symbol (so the caller knows
// whether to unsubscribe).
func (m *PriceMonitor) Remove(id money.PositionId) (symbolStillWatched bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, exists := m.positions[id]
	if !exists {
		return false, false
	}
	delete(m.positions, id)
	if set := m.bySymbol[pos.Symbol]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(m.bySymbol, pos.Symbol)
		} else {
			symbolStillWatched = true
		}
	}
	return symbolStillWatched, true
}

// Has reports whether the position is still registered. First-trigger
// dedup does not go through Has: CheckPrice removes a position as it fires.
func (m *PriceMonitor) Has(id money.PositionId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[id]
	return ok
}

// SymbolsWatched returns every distinct symbol currently registered, for
// the REST fallback loop.
func (m *PriceMonitor) SymbolsWatched() []money.Symbol {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]money.Symbol, 0, len(m.bySymbol))
	for sym := range m.bySymbol {
		out = append(out, sym)
	}
	return out
}

// CheckPrice evaluates every position watching symbol against price and
// returns every trigger that fired, removing each triggered position from
// the monitor as it fires: dedup by removing the position from the
// monitor upon first trigger.
func (m *PriceMonitor) CheckPrice(symbol money.Symbol, price decimal.Decimal) []TriggerResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.bySymbol[symbol]
	if len(ids) == 0 {
		return nil
	}

	var out []TriggerResult
	for id := range ids {
		pos, ok := m.positions[id]
		if !ok {
			continue
		}
		kind, fired := evaluateTrigger(pos, price)
		if !fired {
			continue
		}
		out = append(out, TriggerResult{
			PositionId:     id,
			Instrument:     pos.Instrument,
			Symbol:         pos.Symbol,
			InstrumentKind: pos.InstrumentKind,
			Qty:            pos.Qty,
			Direction:      pos.Direction,
			Kind:           kind,
			Price:          price,
		})

		delete(m.positions, id)
		delete(ids, id)
	}
	if len(ids) == 0 {
		delete(m.bySymbol, symbol)
	}
	return out
}

// evaluateTrigger implements the per-direction trigger rule. When
// both a stop and a target condition would fire in the same tick (a
// pathological wide-bar case) the stop wins: the conservative tie-break.
func evaluateTrigger(pos MonitoredPosition, price decimal.Decimal) (TriggerKind, bool) {
	switch pos.Direction {
	case DirectionLong:
		if price.LessThanOrEqual(pos.Levels.Stop) {
			return TriggerStopLoss, true
		}
		if price.GreaterThanOrEqual(pos.Levels.Target) {
			return TriggerTakeProfit, true
		}
	case DirectionShort:
		if price.GreaterThanOrEqual(pos.Levels.Stop) {
			return TriggerStopLoss, true
		}
		if price.LessThanOrEqual(pos.Levels.Target) {
			return TriggerTakeProfit, true
		}
	}
	return "", false
}
