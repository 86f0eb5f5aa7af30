// Package validator implements a pure, deterministic constraint check over
// a decision plan and a risk context. Grounded on internal/risk/manager.go
// (gatekeeper TradeDecision{Allowed,Reason,Warnings}) and risk/gate.go
// (centralized TradeRequest/TradeApproval approval system), generalized
// into a fully-enumerated, order-sensitive violation list.
package validator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// Severity distinguishes plan-failing violations from advisory ones.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// SizeUnit is the unit a Decision's Size is expressed in.
type SizeUnit string

const (
	SizeDollars   SizeUnit = "DOLLARS"
	SizePctEquity SizeUnit = "PCT_EQUITY"
	SizeShares    SizeUnit = "SHARES"
	SizeContracts SizeUnit = "CONTRACTS"
)

// Size is a decision's requested position size.
type Size struct {
	Unit  SizeUnit
	Value decimal.Decimal
}

// Action is what a Decision asks the engine to do.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionClose   Action = "CLOSE"
	ActionHold    Action = "HOLD"
	ActionNoTrade Action = "NO_TRADE"
)

// DirectionBias is the position direction a decision implies, used for the
// CONFLICTING_DIRECTIONS check (a Buy-to-open-long vs Sell-to-open-short on
// the same instrument within one plan).
type DirectionBias string

const (
	DirectionLong  DirectionBias = "LONG"
	DirectionShort DirectionBias = "SHORT"
	DirectionFlat  DirectionBias = ""
)

// Decision is one instruction within a DecisionPlan.
type Decision struct {
	Instrument     money.InstrumentId
	InstrumentKind money.InstrumentKind
	Action         Action
	Direction      DirectionBias
	Size           Size
	EntryPrice     decimal.Decimal
	StopLoss       decimal.Decimal
	Target         decimal.Decimal
	Confidence     float64 // [0,1]

	// HistoricalSizes is the notional of the last N similar trades, used by
	// the sizing-sanity check.
	HistoricalSizes []decimal.Decimal
}

// DecisionPlan is the approved set of trading decisions from upstream
// strategy and critic review.
type DecisionPlan struct {
	ApprovedByRiskManager bool
	ApprovedByCritic      bool
	Decisions             []Decision
}

// PDTStatus mirrors the account's pattern-day-trader standing.
type PDTStatus string

const (
	PDTUnrestricted PDTStatus = "UNRESTRICTED"
	PDTRestricted   PDTStatus = "RESTRICTED"
)

// GreeksSnapshot is a portfolio-level Greeks snapshot the validator
// consumes but never computes.
type GreeksSnapshot struct {
	DeltaNotional decimal.Decimal
	Gamma         decimal.Decimal
	Vega          decimal.Decimal
	Theta         decimal.Decimal
}

// RiskContext is the request-time snapshot the validator checks against.
type RiskContext struct {
	Equity                   decimal.Decimal
	BuyingPowerAvailable     decimal.Decimal
	BuyingPowerPendingMargin decimal.Decimal
	Positions                map[money.InstrumentId]decimal.Decimal // signed qty
	GrossExposure            decimal.Decimal
	NetExposure              decimal.Decimal
	Greeks                   *GreeksSnapshot
	PDT                      PDTStatus
	DayTradesRemaining       int

	// ReferencePrices must be supplied by the caller to convert
	// Size{Shares,Contracts} into notional; the validator never
	// fabricates a reference price.
	ReferencePrices map[money.InstrumentId]decimal.Decimal

	AsOf time.Time
}

// PerInstrumentLimits bounds a single instrument's exposure.
type PerInstrumentLimits struct {
	MaxUnits     decimal.Decimal
	MaxNotional  decimal.Decimal
	MaxPctEquity decimal.Decimal
}

// PortfolioLimits bounds aggregate exposure across the whole plan.
type PortfolioLimits struct {
	MaxGrossNotional  decimal.Decimal
	MaxNetNotional    decimal.Decimal
	MaxPctEquityGross decimal.Decimal
	MaxPctEquityNet   decimal.Decimal
}

// GreekBounds bounds the portfolio Greeks snapshot.
type GreekBounds struct {
	MaxAbsDelta decimal.Decimal
	MaxAbsGamma decimal.Decimal
	MaxAbsVega  decimal.Decimal
	MaxTheta    decimal.Decimal // floor: theta must be >= MaxTheta
}

// Policy is the full set of limits the validator checks a plan against.
type Policy struct {
	PerInstrument PerInstrumentLimits
	Portfolio     PortfolioLimits
	Greeks        GreekBounds

	MaxPerTradeRiskPct     decimal.Decimal
	MinRiskReward          decimal.Decimal
	SizingSanityMultiplier decimal.Decimal
	PDTEnforced            bool

	// MarginMultiplier is the Reg-T simplification factor applied to gross
	// notional to estimate required margin; a policy
	// parameter, not hard-coded semantics.
	MarginMultiplier decimal.Decimal
}

// Violation is one finding from Validate.
type Violation struct {
	Code       string
	Severity   Severity
	Message    string
	FieldPath  string
	Observed   string
	Limit      string
	Instrument money.InstrumentId
}

// Result is the validator's deterministic output.
type Result struct {
	OK         bool
	Violations []Violation
}

const (
	CodePlanNotApproved           = "PLAN_NOT_APPROVED"
	CodePerInstrumentNotional     = "PER_INSTRUMENT_NOTIONAL_EXCEEDED"
	CodePerInstrumentUnits        = "PER_INSTRUMENT_UNITS_EXCEEDED"
	CodePerInstrumentPctEquity    = "PER_INSTRUMENT_PCT_EQUITY_EXCEEDED"
	CodeMissingStopLoss           = "MISSING_STOP_LOSS"
	CodeInvalidConfidence         = "INVALID_CONFIDENCE"
	CodePerTradeRiskExceeded      = "PER_TRADE_RISK_EXCEEDED"
	CodeRiskRewardBelowMin        = "RISK_REWARD_BELOW_MIN"
	CodeSizingSanity              = "SIZING_SANITY_EXCEEDED"
	CodeConflictingOrders         = "CONFLICTING_ORDERS"
	CodeConflictingDirections     = "CONFLICTING_DIRECTIONS"
	CodePositionMismatch          = "POSITION_MISMATCH"
	CodeGrossNotionalExceeded     = "PORTFOLIO_GROSS_NOTIONAL_EXCEEDED"
	CodeNetNotionalExceeded       = "PORTFOLIO_NET_NOTIONAL_EXCEEDED"
	CodeInsufficientBuyingPower   = "INSUFFICIENT_BUYING_POWER"
	CodeOptionsDeltaExceeded      = "OPTIONS_DELTA_EXCEEDED"
	CodeOptionsGammaExceeded      = "OPTIONS_GAMMA_EXCEEDED"
	CodeOptionsVegaExceeded       = "OPTIONS_VEGA_EXCEEDED"
	CodeOptionsThetaExceeded      = "OPTIONS_THETA_EXCEEDED"
	CodePDTViolation              = "PDT_VIOLATION"
)
