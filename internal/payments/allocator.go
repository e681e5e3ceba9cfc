// Package payments applies recorded tenders against the grand total.
package payments

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Tender is a payment as seen by the allocator. For benefit kinds Approved is
// the amount the benefit allocator actually applied to lines.
type Tender struct {
	PaymentID uuid.UUID
	Kind      enums.TenderKind
	Tendered  decimal.Decimal
	Approved  decimal.Decimal
}

// Result is the balance after every tender has been applied.
type Result struct {
	Applications []txn.PaymentApplication
	Paid         decimal.Decimal
	Remaining    decimal.Decimal
	ChangeDue    decimal.Decimal
}

// Allocate applies tenders in precedence order: WIC, SNAP food, EBT cash,
// credit/debit, cash, other. Ties keep recording order. Cash may exceed the
// balance and produces change; other tenders apply at most the balance left.
func Allocate(grandTotal decimal.Decimal, tenders []Tender) Result {
	ordered := make([]Tender, len(tenders))
	copy(ordered, tenders)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Kind.Precedence() < ordered[b].Kind.Precedence()
	})

	res := Result{Paid: decimal.Zero, ChangeDue: decimal.Zero}
	remaining := money.NonNegative(money.Round(grandTotal))
	for _, t := range ordered {
		before := remaining
		app := txn.PaymentApplication{
			PaymentID:       t.PaymentID,
			Kind:            t.Kind,
			RemainingBefore: before,
			ChangeDue:       decimal.Zero,
		}
		if t.Kind == enums.TenderCash {
			app.Applied = money.Min(money.NonNegative(t.Tendered), before)
			app.ChangeDue = money.NonNegative(t.Tendered.Sub(before))
		} else {
			app.Applied = money.Min(money.NonNegative(t.Approved), before)
		}
		remaining = money.NonNegative(before.Sub(app.Applied))
		app.RemainingAfter = remaining
		res.Paid = res.Paid.Add(app.Applied)
		res.ChangeDue = res.ChangeDue.Add(app.ChangeDue)
		res.Applications = append(res.Applications, app)
	}
	res.Remaining = remaining
	return res
}
