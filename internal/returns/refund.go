// Package returns computes refunds for partial or full returns against a
// completed transaction using the figures stored on that transaction.
package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Request asks to return Quantity units of a line.
type Request struct {
	LineID   uuid.UUID
	Quantity decimal.Decimal
}

// Compute prices the requested returns. Each amount is the difference between
// the cumulative share after this return and the cumulative share before it,
// so repeated partial returns add up exactly to the original line figures.
// Nothing is re-priced against the catalog.
func Compute(original txn.Transaction, reqs []Request, policy enums.RefundPolicy, at time.Time) (txn.Refund, error) {
	if original.Status != enums.TransactionStatusCompleted {
		return txn.Refund{}, pkgerrors.New(pkgerrors.CodeStateConflict, "returns require a completed transaction").WithDetails(map[string]any{
			"status": original.Status,
		})
	}
	if !policy.IsValid() {
		return txn.Refund{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund policy")
	}
	merged, order, err := mergeRequests(reqs)
	if err != nil {
		return txn.Refund{}, err
	}

	refund := txn.Refund{ID: uuid.New(), Policy: policy, Total: decimal.Zero, CreatedAt: at}
	snap, wic := decimal.Zero, decimal.Zero
	for _, lineID := range order {
		qty := merged[lineID]
		idx := original.LineIndex(lineID)
		if idx < 0 || !original.Lines[idx].Active() {
			return txn.Refund{}, pkgerrors.New(pkgerrors.CodeValidation, "line not found on original transaction").WithDetails(map[string]any{
				"lineId": lineID,
			})
		}
		line := original.Lines[idx]
		figures, ok := original.Calculation.Line(lineID)
		if !ok {
			return txn.Refund{}, pkgerrors.New(pkgerrors.CodeInconsistentTotals, "original line has no stored figures")
		}
		open := line.Quantity.Sub(line.ReturnedQuantity)
		if qty.GreaterThan(open) {
			return txn.Refund{}, pkgerrors.New(pkgerrors.CodeOverReturnQuantity, "return exceeds quantity sold").WithDetails(map[string]any{
				"lineId":    lineID,
				"requested": qty.String(),
				"available": open.String(),
			})
		}

		share := func(amount decimal.Decimal) decimal.Decimal {
			return portion(amount, line.ReturnedQuantity, qty, line.Quantity)
		}
		rl := txn.RefundLine{
			LineID:   lineID,
			Quantity: qty,
			Price:    share(figures.SubTotal.Sub(figures.DepositTotal)),
			Deposit:  share(figures.DepositTotal),
			Tax:      share(figures.TaxTotal),
			SNAP:     share(figures.SNAPPaidAmount),
			WIC:      share(figures.WICPaidAmount),
		}
		rl.Total = rl.Price.Add(rl.Deposit).Add(rl.Tax)
		refund.Lines = append(refund.Lines, rl)
		refund.Total = refund.Total.Add(rl.Total)
		snap = snap.Add(rl.SNAP)
		wic = wic.Add(rl.WIC)
	}

	refund.Tenders = route(original, refund.Total, snap, wic, policy)
	return refund, nil
}

// Apply returns a copy of original with the refund recorded: returned
// quantities and per-payment refunded amounts are advanced.
func Apply(original txn.Transaction, refund txn.Refund) txn.Transaction {
	out := original.Clone()
	for _, rl := range refund.Lines {
		if idx := out.LineIndex(rl.LineID); idx >= 0 {
			out.Lines[idx].ReturnedQuantity = out.Lines[idx].ReturnedQuantity.Add(rl.Quantity)
		}
	}
	for _, rt := range refund.Tenders {
		if rt.PaymentID == nil {
			continue
		}
		for i := range out.Payments {
			if out.Payments[i].ID == *rt.PaymentID {
				out.Payments[i].Refunded = out.Payments[i].Refunded.Add(rt.Amount)
			}
		}
	}
	out.Refunds = append(out.Refunds, refund.Clone())
	return out
}

func portion(amount, returned, qty, sold decimal.Decimal) decimal.Decimal {
	if !sold.IsPositive() {
		return decimal.Zero
	}
	after := money.Round(amount.Mul(returned.Add(qty)).Div(sold))
	before := money.Round(amount.Mul(returned).Div(sold))
	return after.Sub(before)
}

func mergeRequests(reqs []Request) (map[uuid.UUID]decimal.Decimal, []uuid.UUID, error) {
	if len(reqs) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one return line is required")
	}
	merged := make(map[uuid.UUID]decimal.Decimal, len(reqs))
	var order []uuid.UUID
	for _, r := range reqs {
		if !r.Quantity.IsPositive() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "return quantity must be positive").WithDetails(map[string]any{
				"lineId":   r.LineID,
				"quantity": r.Quantity.String(),
			})
		}
		cur, ok := merged[r.LineID]
		if !ok {
			order = append(order, r.LineID)
			cur = decimal.Zero
		}
		merged[r.LineID] = cur.Add(r.Quantity)
	}
	return merged, order, nil
}
