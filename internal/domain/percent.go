package domain

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// PercentChange returns (current - reference) / reference as a fraction.
func PercentChange(current, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return current.Sub(reference).Div(reference)
}

// Above returns price × (1 + pct).
func Above(price, pct decimal.Decimal) decimal.Decimal {
	return price.Mul(one.Add(pct))
}

// Below returns price × (1 - pct).
func Below(price, pct decimal.Decimal) decimal.Decimal {
	return price.Mul(one.Sub(pct))
}
