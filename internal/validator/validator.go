package validator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/money"
)

// Validate runs every check in order over plan and returns a
// deterministic Result: same (plan, context, policy) always yields the same
// violation list in the same order.
func Validate(plan DecisionPlan, ctx RiskContext, policy Policy) Result {
	var violations []Violation

	// 1. Plan approval.
	if !plan.ApprovedByRiskManager || !plan.ApprovedByCritic {
		violations = append(violations, Violation{
			Code:     CodePlanNotApproved,
			Severity: SeverityError,
			Message:  "plan requires both risk-manager and critic approval",
		})
	}

	notionals := make(map[int]decimal.Decimal, len(plan.Decisions))

	// 2. Per-decision checks.
	for i, d := range plan.Decisions {
		if d.Action == ActionHold || d.Action == ActionNoTrade {
			continue
		}

		notional := decisionNotional(d, ctx)
		notionals[i] = notional

		violations = append(violations, perInstrumentChecks(d, notional, ctx, policy)...)

		if (d.Action == ActionBuy || d.Action == ActionSell) && d.StopLoss.IsZero() {
			violations = append(violations, Violation{
				Code:       CodeMissingStopLoss,
				Severity:   SeverityError,
				Message:    "entry order missing a stop loss",
				FieldPath:  fmt.Sprintf("decisions[%d].stop_loss", i),
				Instrument: d.Instrument,
			})
		}

		if d.Confidence < 0 || d.Confidence > 1 {
			violations = append(violations, Violation{
				Code:       CodeInvalidConfidence,
				Severity:   SeverityError,
				Message:    "confidence must be in [0,1]",
				FieldPath:  fmt.Sprintf("decisions[%d].confidence", i),
				Observed:   fmt.Sprintf("%v", d.Confidence),
				Instrument: d.Instrument,
			})
		}

		if v, ok := perTradeRiskCheck(d, i, ctx, policy); ok {
			violations = append(violations, v)
		}

		if v, ok := riskRewardCheck(d, i, policy); ok {
			violations = append(violations, v)
		}

		violations = append(violations, sizingSanityCheck(d, i, notional, policy)...)
	}

	// 3. Conflicts within the plan, evaluated in stable (sorted) instrument
	// order for determinism regardless of map iteration.
	violations = append(violations, conflictChecks(plan, ctx)...)

	// 4. Portfolio.
	gross, net := decimal.Zero, decimal.Zero
	for i, d := range plan.Decisions {
		if d.Action == ActionHold || d.Action == ActionNoTrade {
			continue
		}
		n := notionals[i]
		gross = gross.Add(n.Abs())
		if d.Action == ActionBuy {
			net = net.Add(n.Abs())
		} else if d.Action == ActionSell {
			net = net.Sub(n.Abs())
		}
	}
	violations = append(violations, portfolioChecks(gross, net, ctx, policy)...)

	// 5. Buying power.
	if v, ok := buyingPowerCheck(gross, ctx, policy); ok {
		violations = append(violations, v)
	}

	// 6. Options Greeks.
	violations = append(violations, greeksChecks(ctx, policy)...)

	// 7. PDT.
	violations = append(violations, pdtChecks(plan, ctx)...)

	ok := true
	for _, v := range violations {
		if v.Severity == SeverityError {
			ok = false
			break
		}
	}
	return Result{OK: ok, Violations: violations}
}

// decisionNotional computes the dollar notional a Decision represents.
// Size{Shares,Contracts} requires a caller-supplied reference price —
// never fabricated.
func decisionNotional(d Decision, ctx RiskContext) decimal.Decimal {
	switch d.Size.Unit {
	case SizeDollars:
		return d.Size.Value
	case SizePctEquity:
		return d.Size.Value.Mul(ctx.Equity)
	case SizeShares, SizeContracts:
		ref, ok := ctx.ReferencePrices[d.Instrument]
		if !ok {
			return decimal.Zero
		}
		return d.Size.Value.Mul(ref)
	default:
		return decimal.Zero
	}
}

func perInstrumentChecks(d Decision, notional decimal.Decimal, ctx RiskContext, policy Policy) []Violation {
	var out []Violation
	if !policy.PerInstrument.MaxNotional.IsZero() && notional.Abs().GreaterThan(policy.PerInstrument.MaxNotional) {
		out = append(out, Violation{
			Code:       CodePerInstrumentNotional,
			Severity:   SeverityError,
			Message:    "per-instrument notional exceeded",
			Instrument: d.Instrument,
			Observed:   notional.Abs().String(),
			Limit:      policy.PerInstrument.MaxNotional.String(),
		})
	}
	if !policy.PerInstrument.MaxUnits.IsZero() && d.Size.Unit != SizeDollars && d.Size.Unit != SizePctEquity && d.Size.Value.Abs().GreaterThan(policy.PerInstrument.MaxUnits) {
		out = append(out, Violation{
			Code:       CodePerInstrumentUnits,
			Severity:   SeverityError,
			Message:    "per-instrument unit count exceeded",
			Instrument: d.Instrument,
			Observed:   d.Size.Value.Abs().String(),
			Limit:      policy.PerInstrument.MaxUnits.String(),
		})
	}
	if !policy.PerInstrument.MaxPctEquity.IsZero() && !ctx.Equity.IsZero() {
		pct := notional.Abs().Div(ctx.Equity)
		if pct.GreaterThan(policy.PerInstrument.MaxPctEquity) {
			out = append(out, Violation{
				Code:       CodePerInstrumentPctEquity,
				Severity:   SeverityError,
				Message:    "per-instrument % of equity exceeded",
				Instrument: d.Instrument,
				Observed:   pct.String(),
				Limit:      policy.PerInstrument.MaxPctEquity.String(),
			})
		}
	}
	return out
}

func perTradeRiskCheck(d Decision, idx int, ctx RiskContext, policy Policy) (Violation, bool) {
	if policy.MaxPerTradeRiskPct.IsZero() || d.StopLoss.IsZero() || d.EntryPrice.IsZero() || ctx.Equity.IsZero() {
		return Violation{}, false
	}
	riskPerUnit := d.EntryPrice.Sub(d.StopLoss).Abs()
	qty := d.Size.Value
	riskPct := riskPerUnit.Mul(qty).Div(ctx.Equity)
	if riskPct.GreaterThan(policy.MaxPerTradeRiskPct) {
		return Violation{
			Code:       CodePerTradeRiskExceeded,
			Severity:   SeverityError,
			Message:    "per-trade risk exceeds max % of equity",
			FieldPath:  fmt.Sprintf("decisions[%d]", idx),
			Instrument: d.Instrument,
			Observed:   riskPct.String(),
			Limit:      policy.MaxPerTradeRiskPct.String(),
		}, true
	}
	return Violation{}, false
}

func riskRewardCheck(d Decision, idx int, policy Policy) (Violation, bool) {
	if policy.MinRiskReward.IsZero() || d.StopLoss.IsZero() || d.Target.IsZero() || d.EntryPrice.IsZero() {
		return Violation{}, false
	}
	risk := d.EntryPrice.Sub(d.StopLoss).Abs()
	reward := d.Target.Sub(d.EntryPrice).Abs()
	if risk.IsZero() {
		return Violation{}, false
	}
	rr := reward.Div(risk)
	if rr.LessThan(policy.MinRiskReward) {
		return Violation{
			Code:       CodeRiskRewardBelowMin,
			Severity:   SeverityError,
			Message:    "risk/reward below policy minimum",
			FieldPath:  fmt.Sprintf("decisions[%d]", idx),
			Instrument: d.Instrument,
			Observed:   rr.String(),
			Limit:      policy.MinRiskReward.String(),
		}, true
	}
	return Violation{}, false
}

func sizingSanityCheck(d Decision, idx int, notional decimal.Decimal, policy Policy) []Violation {
	if len(d.HistoricalSizes) < 5 || policy.SizingSanityMultiplier.IsZero() {
		return nil
	}
	median := medianOf(d.HistoricalSizes)
	threshold := median.Mul(policy.SizingSanityMultiplier)
	if notional.Abs().GreaterThan(threshold) {
		return []Violation{{
			Code:       CodeSizingSanity,
			Severity:   SeverityWarning,
			Message:    "proposed notional exceeds sizing sanity threshold over historical median",
			FieldPath:  fmt.Sprintf("decisions[%d]", idx),
			Instrument: d.Instrument,
			Observed:   notional.Abs().String(),
			Limit:      threshold.String(),
		}}
	}
	return nil
}

func medianOf(vals []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

func conflictChecks(plan DecisionPlan, ctx RiskContext) []Violation {
	type bucket struct {
		hasBuy, hasSell         bool
		hasLong, hasShort       bool
		hasCloseOrSellDecision  bool
	}
	byInstrument := make(map[money.InstrumentId]*bucket)
	var order []money.InstrumentId
	for _, d := range plan.Decisions {
		b, ok := byInstrument[d.Instrument]
		if !ok {
			b = &bucket{}
			byInstrument[d.Instrument] = b
			order = append(order, d.Instrument)
		}
		switch d.Action {
		case ActionBuy:
			b.hasBuy = true
		case ActionSell:
			b.hasSell = true
			b.hasCloseOrSellDecision = true
		case ActionClose:
			b.hasCloseOrSellDecision = true
		}
		switch d.Direction {
		case DirectionLong:
			b.hasLong = true
		case DirectionShort:
			b.hasShort = true
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var out []Violation
	for _, instr := range order {
		b := byInstrument[instr]
		if b.hasBuy && b.hasSell {
			out = append(out, Violation{
				Code:       CodeConflictingOrders,
				Severity:   SeverityError,
				Message:    "plan contains both buy and sell decisions for the same instrument",
				Instrument: instr,
			})
		}
		if b.hasLong && b.hasShort {
			out = append(out, Violation{
				Code:       CodeConflictingDirections,
				Severity:   SeverityError,
				Message:    "plan contains both long and short decisions for the same instrument",
				Instrument: instr,
			})
		}
		if b.hasCloseOrSellDecision {
			if qty, ok := ctx.Positions[instr]; !ok || qty.IsZero() {
				out = append(out, Violation{
					Code:       CodePositionMismatch,
					Severity:   SeverityWarning,
					Message:    "sell/close decision does not match a known open position",
					Instrument: instr,
				})
			}
		}
	}
	return out
}

func portfolioChecks(gross, net decimal.Decimal, ctx RiskContext, policy Policy) []Violation {
	var out []Violation
	if !policy.Portfolio.MaxGrossNotional.IsZero() && gross.GreaterThan(policy.Portfolio.MaxGrossNotional) {
		out = append(out, Violation{
			Code:     CodeGrossNotionalExceeded,
			Severity: SeverityError,
			Message:  "portfolio gross notional exceeds policy max",
			Observed: gross.String(),
			Limit:    policy.Portfolio.MaxGrossNotional.String(),
		})
	}
	if !policy.Portfolio.MaxNetNotional.IsZero() && net.Abs().GreaterThan(policy.Portfolio.MaxNetNotional) {
		out = append(out, Violation{
			Code:     CodeNetNotionalExceeded,
			Severity: SeverityError,
			Message:  "portfolio net notional exceeds policy max",
			Observed: net.Abs().String(),
			Limit:    policy.Portfolio.MaxNetNotional.String(),
		})
	}
	if !ctx.Equity.IsZero() {
		if !policy.Portfolio.MaxPctEquityGross.IsZero() {
			pct := gross.Div(ctx.Equity)
			if pct.GreaterThan(policy.Portfolio.MaxPctEquityGross) {
				out = append(out, Violation{
					Code:     CodeGrossNotionalExceeded,
					Severity: SeverityError,
					Message:  "portfolio gross exposure exceeds % of equity ceiling",
					Observed: pct.String(),
					Limit:    policy.Portfolio.MaxPctEquityGross.String(),
				})
			}
		}
		if !policy.Portfolio.MaxPctEquityNet.IsZero() {
			pct := net.Abs().Div(ctx.Equity)
			if pct.GreaterThan(policy.Portfolio.MaxPctEquityNet) {
				out = append(out, Violation{
					Code:     CodeNetNotionalExceeded,
					Severity: SeverityError,
					Message:  "portfolio net exposure exceeds % of equity ceiling",
					Observed: pct.String(),
					Limit:    policy.Portfolio.MaxPctEquityNet.String(),
				})
			}
		}
	}
	return out
}

func buyingPowerCheck(gross decimal.Decimal, ctx RiskContext, policy Policy) (Violation, bool) {
	multiplier := policy.MarginMultiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromFloat(0.5)
	}
	required := multiplier.Mul(gross)
	if required.Add(ctx.BuyingPowerPendingMargin).GreaterThan(ctx.BuyingPowerAvailable) {
		return Violation{
			Code:     CodeInsufficientBuyingPower,
			Severity: SeverityError,
			Message:  "estimated required margin exceeds available buying power",
			Observed: required.Add(ctx.BuyingPowerPendingMargin).String(),
			Limit:    ctx.BuyingPowerAvailable.String(),
		}, true
	}
	return Violation{}, false
}

func greeksChecks(ctx RiskContext, policy Policy) []Violation {
	if ctx.Greeks == nil {
		return nil
	}
	var out []Violation
	g := ctx.Greeks
	if !policy.Greeks.MaxAbsDelta.IsZero() && g.DeltaNotional.Abs().GreaterThan(policy.Greeks.MaxAbsDelta) {
		out = append(out, Violation{Code: CodeOptionsDeltaExceeded, Severity: SeverityError, Message: "portfolio delta exceeds bound", Observed: g.DeltaNotional.Abs().String(), Limit: policy.Greeks.MaxAbsDelta.String()})
	}
	if !policy.Greeks.MaxAbsGamma.IsZero() && g.Gamma.Abs().GreaterThan(policy.Greeks.MaxAbsGamma) {
		out = append(out, Violation{Code: CodeOptionsGammaExceeded, Severity: SeverityError, Message: "portfolio gamma exceeds bound", Observed: g.Gamma.Abs().String(), Limit: policy.Greeks.MaxAbsGamma.String()})
	}
	if !policy.Greeks.MaxAbsVega.IsZero() && g.Vega.Abs().GreaterThan(policy.Greeks.MaxAbsVega) {
		out = append(out, Violation{Code: CodeOptionsVegaExceeded, Severity: SeverityError, Message: "portfolio vega exceeds bound", Observed: g.Vega.Abs().String(), Limit: policy.Greeks.MaxAbsVega.String()})
	}
	// Theta bound is a floor: theta must be >= MaxTheta (typically negative).
	if g.Theta.LessThan(policy.Greeks.MaxTheta) {
		out = append(out, Violation{Code: CodeOptionsThetaExceeded, Severity: SeverityError, Message: "portfolio theta below floor", Observed: g.Theta.String(), Limit: policy.Greeks.MaxTheta.String()})
	}
	return out
}

func pdtChecks(plan DecisionPlan, ctx RiskContext) []Violation {
	if ctx.PDT != PDTRestricted || ctx.DayTradesRemaining > 0 {
		return nil
	}
	var out []Violation
	for _, d := range plan.Decisions {
		if d.Action != ActionSell && d.Action != ActionClose {
			continue
		}
		if qty, ok := ctx.Positions[d.Instrument]; ok && !qty.IsZero() {
			out = append(out, Violation{
				Code:       CodePDTViolation,
				Severity:   SeverityError,
				Message:    "closing action blocked: PDT-restricted account with zero day-trades remaining",
				Instrument: d.Instrument,
			})
		}
	}
	return out
}
