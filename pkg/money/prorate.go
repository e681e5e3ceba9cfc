package money

import "github.com/shopspring/decimal"

// Prorate splits total across weights in proportion to each weight, rounding
// every share to cents. The rounding difference is added to the share at
// remainderAt so the shares always sum to Round(total).
func Prorate(total decimal.Decimal, weights []decimal.Decimal, remainderAt int) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return shares
	}
	whole := Sum(weights...)
	allocated := decimal.Zero
	for i, w := range weights {
		shares[i] = Round(Share(total, w, whole))
		allocated = allocated.Add(shares[i])
	}
	if remainderAt < 0 || remainderAt >= len(shares) {
		remainderAt = 0
	}
	if diff := Round(total).Sub(allocated); !diff.IsZero() {
		shares[remainderAt] = shares[remainderAt].Add(diff)
	}
	return shares
}

// LargestIndex returns the index of the first largest value, or -1 when values
// is empty.
func LargestIndex(values []decimal.Decimal) int {
	idx := -1
	for i, v := range values {
		if idx < 0 || v.GreaterThan(values[idx]) {
			idx = i
		}
	}
	return idx
}
