// Package trend computes point-in-time price deltas over fixed lookback windows.
package trend

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentChange returns ((new-old)/old)*100 rounded to 2 decimals.
// Returns nil if either price is nil, non-finite, or old is zero.
func PercentChange(oldPrice, newPrice *float64) *float64 {
	if !usable(oldPrice) || !usable(newPrice) || *oldPrice == 0 {
		return nil
	}

	o := decimal.NewFromFloat(*oldPrice)
	n := decimal.NewFromFloat(*newPrice)
	v := n.Sub(o).Div(o).Mul(hundred).Round(2).InexactFloat64()
	return &v
}

// DollarChange returns new-old rounded to 2 decimals.
// Returns nil if either price is nil or non-finite.
func DollarChange(oldPrice, newPrice *float64) *float64 {
	if !usable(oldPrice) || !usable(newPrice) {
		return nil
	}

	o := decimal.NewFromFloat(*oldPrice)
	n := decimal.NewFromFloat(*newPrice)
	v := n.Sub(o).Round(2).InexactFloat64()
	return &v
}

// usable reports whether p points to a finite number.
// decimal.NewFromFloat panics on NaN and Inf.
func usable(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}
