// Package pricing picks the unit price for a line and validates the quantity
// and floor constraints that apply to it.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Source names where the resolved price came from.
type Source string

const (
	SourcePrompted Source = "prompted"
	SourceGroup    Source = "customer_group"
	SourceSale     Source = "sale"
	SourceBulk     Source = "bulk"
	SourceRetail   Source = "retail"
)

// Resolution is the price chosen for a line.
type Resolution struct {
	PriceUsed decimal.Decimal
	Source    Source
}

// Resolve applies the price precedence: prompted, customer group, active sale,
// bulk tier, retail. A prompted price below the floor needs an approved
// override.
func Resolve(line txn.LineItem, customerGroup string, at time.Time) (Resolution, error) {
	if line.PromptedPrice != nil {
		price := *line.PromptedPrice
		if price.IsNegative() {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "prompted price cannot be negative")
		}
		if err := CheckFloor(line, price); err != nil {
			return Resolution{}, err
		}
		return Resolution{PriceUsed: price, Source: SourcePrompted}, nil
	}
	if customerGroup != "" {
		for _, gp := range line.GroupPrices {
			if gp.Group == customerGroup {
				return Resolution{PriceUsed: gp.Price, Source: SourceGroup}, nil
			}
		}
	}
	if line.Sale != nil && line.Sale.ActiveAt(at) {
		return Resolution{PriceUsed: line.Sale.Price, Source: SourceSale}, nil
	}
	if tier := selectTier(line.Quantity, line.BulkTiers); tier != nil {
		return Resolution{PriceUsed: tier.UnitPrice, Source: SourceBulk}, nil
	}
	return Resolution{PriceUsed: line.RetailPrice, Source: SourceRetail}, nil
}

// CheckFloor rejects price when it is below the line floor and no override has
// been approved.
func CheckFloor(line txn.LineItem, price decimal.Decimal) error {
	if line.FloorPrice.IsZero() || !price.LessThan(line.FloorPrice) || line.PriceOverride.Approved() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeFloorPriceViolation, "price is below floor price").WithDetails(map[string]any{
		"lineId":     line.ID,
		"price":      price.StringFixed(money.CentPlaces),
		"floorPrice": line.FloorPrice.StringFixed(money.CentPlaces),
	})
}

// FinalPrice is the per-unit price after discounts plus deposit, floored at zero.
func FinalPrice(priceUsed, lineDiscountPerUnit, invoiceDiscountPerUnit, depositRate decimal.Decimal) decimal.Decimal {
	return money.NonNegative(priceUsed.Sub(lineDiscountPerUnit).Sub(invoiceDiscountPerUnit).Add(depositRate))
}

func selectTier(qty decimal.Decimal, tiers []txn.PriceTier) *txn.PriceTier {
	var selected *txn.PriceTier
	for i := range tiers {
		tier := tiers[i]
		if tier.MinQty.LessThanOrEqual(qty) {
			if selected == nil || tier.MinQty.GreaterThan(selected.MinQty) {
				selected = &tier
			}
		}
	}
	return selected
}
