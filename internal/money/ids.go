package money

// ClientOrderId is the engine-assigned idempotence key for an order. It is
// stable across retries: resubmitting with the same ClientOrderId must not
// create a duplicate at the broker.
type ClientOrderId string

// BrokerOrderId is assigned by the broker and only appears once an order has
// been accepted.
type BrokerOrderId string

// InstrumentId identifies a tradable instrument (an equity or option symbol).
type InstrumentId string

// Symbol is an exchange-facing ticker, distinct from InstrumentId so the two
// are never accidentally interchanged at a broker boundary.
type Symbol string

// InstrumentKind classifies an instrument explicitly. The reference system
// this engine is modeled on inferred option-vs-equity from symbol length;
// that heuristic is not ground truth, so every command and decision carries
// this field instead.
type InstrumentKind int

const (
	InstrumentUnknown InstrumentKind = iota
	InstrumentEquity
	InstrumentOption
)

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentEquity:
		return "equity"
	case InstrumentOption:
		return "option"
	default:
		return "unknown"
	}
}

// PositionId identifies a MonitoredPosition under stop/target enforcement.
type PositionId string
