package returns

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

type refundable struct {
	payment txn.Payment
	left    decimal.Decimal
}

// route splits a refund across tenders. Benefit portions go back to the
// benefit they came from. The rest goes to EBT cash first, then under the
// original policy to the other tenders in recording order. Anything left is
// paid out in cash.
func route(original txn.Transaction, total, snap, wic decimal.Decimal, policy enums.RefundPolicy) []txn.RefundTender {
	applied := map[uuid.UUID]decimal.Decimal{}
	for _, app := range original.Calculation.Payments {
		applied[app.PaymentID] = applied[app.PaymentID].Add(app.Applied)
	}
	pool := make([]*refundable, 0, len(original.Payments))
	for _, p := range original.Payments {
		left := money.NonNegative(applied[p.ID].Sub(p.Refunded))
		pool = append(pool, &refundable{payment: p, left: left})
	}

	var out []txn.RefundTender
	give := func(match func(enums.TenderKind) bool, amount decimal.Decimal) decimal.Decimal {
		for _, r := range pool {
			if !amount.IsPositive() {
				break
			}
			if !match(r.payment.Kind) || !r.left.IsPositive() {
				continue
			}
			take := money.Min(amount, r.left)
			r.left = r.left.Sub(take)
			amount = amount.Sub(take)
			id := r.payment.ID
			out = append(out, txn.RefundTender{PaymentID: &id, Kind: r.payment.Kind, Amount: take})
		}
		return amount
	}

	rest := money.NonNegative(total.Sub(snap).Sub(wic))
	rest = rest.Add(give(func(k enums.TenderKind) bool { return k == enums.TenderSNAPFood }, snap))
	rest = rest.Add(give(enums.TenderKind.IsWIC, wic))
	rest = give(func(k enums.TenderKind) bool { return k == enums.TenderEBTCash }, rest)
	if policy == enums.RefundPolicyOriginalTender {
		rest = give(func(k enums.TenderKind) bool { return !k.RefundsToOriginal() }, rest)
	}
	if rest.IsPositive() {
		out = append(out, txn.RefundTender{Kind: enums.TenderCash, Amount: rest})
	}
	return out
}
