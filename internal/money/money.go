// Package money holds the exact-decimal value types shared across the
// execution core: no float64 ever appears on the order path.
package money

import "github.com/shopspring/decimal"

// Amount is a signed dollar (or quote-currency) amount.
type Amount = decimal.Decimal

// Qty is a signed share/contract quantity.
type Qty = decimal.Decimal

// Price is a per-unit price.
type Price = decimal.Decimal

// Zero is the canonical zero value, exported for readability at call sites.
var Zero = decimal.Zero

// WeightedAverage folds a new (qty, price) observation into a running
// volume-weighted average:
// avg = Σ(qty·price) / Σ(qty).
func WeightedAverage(curAvg, curQty, addQty, addPrice decimal.Decimal) decimal.Decimal {
	newQty := curQty.Add(addQty)
	if newQty.IsZero() {
		return decimal.Zero
	}
	totalCost := curAvg.Mul(curQty).Add(addPrice.Mul(addQty))
	return totalCost.Div(newQty)
}
