package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

// relativePrice shifts a price by a signed fraction using decimal
// arithmetic, so fixed-percent stop bands land on exact values.
func relativePrice(price, pct float64) float64 {
	if price <= 0 {
		return 0
	}
	out, _ := decFromFloat(price).Mul(decOne.Add(decFromFloat(pct))).Float64()
	return out
}

func decimalLTE(a, b float64) bool {
	return decFromFloat(a).Cmp(decFromFloat(b)) <= 0
}
