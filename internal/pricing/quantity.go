package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
)

var (
	MinQuantity        = decimal.RequireFromString("0.01")
	MaxUnitQuantity    = decimal.NewFromInt(99)
	MaxWeighedQuantity = decimal.RequireFromString("30.0")
)

// Limits bounds line quantities. Zero values fall back to the package defaults.
type Limits struct {
	MaxUnit    decimal.Decimal
	MaxWeighed decimal.Decimal
}

func (l Limits) maxFor(weighed bool) decimal.Decimal {
	if weighed {
		if l.MaxWeighed.IsPositive() {
			return l.MaxWeighed
		}
		return MaxWeighedQuantity
	}
	if l.MaxUnit.IsPositive() {
		return l.MaxUnit
	}
	return MaxUnitQuantity
}

// ValidateQuantity enforces the 0.01 minimum and the per-kind maximum.
func (l Limits) ValidateQuantity(qty decimal.Decimal, weighed bool) error {
	limit := l.maxFor(weighed)
	if qty.LessThan(MinQuantity) || qty.GreaterThan(limit) {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity out of range").WithDetails(map[string]any{
			"quantity": qty.String(),
			"min":      MinQuantity.String(),
			"max":      limit.String(),
			"weighed":  weighed,
		})
	}
	return nil
}
