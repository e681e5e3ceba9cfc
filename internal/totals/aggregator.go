// Package totals sums active lines into transaction totals.
package totals

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/tax"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Line carries the unrounded per-line figures. SubTotal already includes the
// deposit.
type Line struct {
	Quantity    decimal.Decimal
	RetailPrice decimal.Decimal
	DepositRate decimal.Decimal
	SubTotal    decimal.Decimal
	Tax         decimal.Decimal
	TaxDetail   []txn.TaxAmount
}

// Savings is max(0, (retail − finalPrice + deposit) × quantity) at full
// precision.
func (l Line) Savings() decimal.Decimal {
	regular := l.RetailPrice.Add(l.DepositRate).Mul(l.Quantity)
	return money.NonNegative(regular.Sub(l.SubTotal))
}

// Aggregate rounds only at the transaction level. The deposit is reported on
// its own but is already part of the subtotal, so the grand total is
// subtotal + tax + fee.
func Aggregate(lines []Line, fee decimal.Decimal) txn.Totals {
	var (
		count    = decimal.Zero
		subtotal = decimal.Zero
		taxTotal = decimal.Zero
		deposit  = decimal.Zero
		savings  = decimal.Zero
		details  = make([][]txn.TaxAmount, 0, len(lines))
	)
	for _, l := range lines {
		count = count.Add(l.Quantity)
		subtotal = subtotal.Add(l.SubTotal)
		taxTotal = taxTotal.Add(l.Tax)
		deposit = deposit.Add(l.DepositRate.Mul(l.Quantity))
		savings = savings.Add(l.Savings())
		details = append(details, l.TaxDetail)
	}

	fee = money.Round(money.NonNegative(fee))
	out := txn.Totals{
		ItemCount:    count,
		Subtotal:     money.Round(subtotal),
		TaxTotal:     money.Round(money.NonNegative(taxTotal)),
		DepositTotal: money.Round(deposit),
		SavingsTotal: money.Round(savings),
		Fee:          fee,
		Paid:         decimal.Zero,
		Remaining:    decimal.Zero,
		ChangeDue:    decimal.Zero,
		TaxByID:      tax.Summarize(details...),
	}
	out.GrandTotal = out.Subtotal.Add(out.TaxTotal).Add(out.Fee)
	out.Remaining = out.GrandTotal
	return out
}
