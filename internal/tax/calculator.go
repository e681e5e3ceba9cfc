// Package tax computes combined and per-component line tax.
package tax

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// LineTax is the tax owed on one line before any benefit exemption.
type LineTax struct {
	Rate       decimal.Decimal
	Combined   decimal.Decimal
	PerUnit    decimal.Decimal
	Components []txn.TaxAmount
}

// Line computes tax on the line's extended amount. PerUnit is the display
// figure for one unit at finalPrice and is not summed anywhere.
func Line(extended, finalPrice decimal.Decimal, components []txn.TaxComponent) LineTax {
	rate := txn.TaxRate(components)
	if !rate.IsPositive() {
		return LineTax{
			Rate:       decimal.Zero,
			Combined:   decimal.Zero,
			PerUnit:    decimal.Zero,
			Components: Apportion(decimal.Zero, components),
		}
	}
	combined := money.Round(money.Percent(extended, rate))
	return LineTax{
		Rate:       rate,
		Combined:   combined,
		PerUnit:    money.Round(money.Percent(finalPrice, rate)),
		Components: Apportion(combined, components),
	}
}

// Apportion splits combined tax across components by rate. The rounding
// remainder goes to the highest-rate component, first one on ties. Output
// keeps the component order.
func Apportion(combined decimal.Decimal, components []txn.TaxComponent) []txn.TaxAmount {
	if len(components) == 0 {
		return nil
	}
	rates := make([]decimal.Decimal, len(components))
	for i, c := range components {
		rates[i] = c.Rate
	}
	shares := money.Prorate(combined, rates, money.LargestIndex(rates))
	out := make([]txn.TaxAmount, len(components))
	for i, c := range components {
		out[i] = txn.TaxAmount{TaxID: c.TaxID, Rate: money.RoundPercent(c.Rate), Amount: shares[i]}
	}
	return out
}

// Exempt reduces tax by the exempt percentage, rounding toward zero so the
// result never exceeds originalTax × (1 − percent/100).
func Exempt(originalTax, exemptPercent decimal.Decimal) decimal.Decimal {
	if !exemptPercent.IsPositive() {
		return originalTax
	}
	remaining := money.NonNegative(money.Hundred.Sub(exemptPercent))
	return money.RoundDown(money.Percent(originalTax, remaining))
}

// Summarize totals tax amounts by tax ID, ordered by tax ID.
func Summarize(amounts ...[]txn.TaxAmount) []txn.TaxAmount {
	byID := map[string]txn.TaxAmount{}
	for _, list := range amounts {
		for _, a := range list {
			cur, ok := byID[a.TaxID]
			if !ok {
				byID[a.TaxID] = a
				continue
			}
			cur.Amount = cur.Amount.Add(a.Amount)
			byID[a.TaxID] = cur
		}
	}
	out := make([]txn.TaxAmount, 0, len(byID))
	for _, a := range byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaxID < out[j].TaxID })
	return out
}
