// Package money holds the rounding rules shared by every calculation step.
// Money is carried as decimal.Decimal at full precision and rounded HALF_UP to
// cents only where a value is reported or aggregated. Percentages keep three
// decimal places.
package money

import "github.com/shopspring/decimal"

const (
	// CentPlaces is the reporting precision for monetary values.
	CentPlaces int32 = 2
	// PercentPlaces is the stored precision for percentages.
	PercentPlaces int32 = 3
)

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
	Cent    = decimal.New(1, -CentPlaces)
)

// Round rounds a monetary value HALF_UP to cents. decimal.Round rounds half
// away from zero, which is HALF_UP for the non-negative amounts the engine
// produces.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(CentPlaces)
}

// RoundDown truncates toward zero at cent precision.
func RoundDown(v decimal.Decimal) decimal.Decimal {
	return v.Truncate(CentPlaces)
}

// RoundPercent rounds a percentage HALF_UP to three places.
func RoundPercent(v decimal.Decimal) decimal.Decimal {
	return v.Round(PercentPlaces)
}

// NonNegative clamps v at zero.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Percent returns pct percent of v at full precision.
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(Hundred)
}

// Share returns total × part / whole at full precision, or zero when whole is zero.
func Share(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return total.Mul(part).Div(whole)
}

// Sum adds the provided values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	out := decimal.Zero
	for _, v := range values {
		out = out.Add(v)
	}
	return out
}

// MustParse parses a literal amount and panics on malformed input. Intended
// for constants and tests.
func MustParse(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// FromCents converts integer cents to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -CentPlaces)
}

// ToCents converts an amount to integer cents after HALF_UP rounding.
func ToCents(v decimal.Decimal) int64 {
	return Round(v).Shift(CentPlaces).IntPart()
}
