package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// PaymentRequest tenders an amount of one kind. For cash Amount is the cash
// handed over; for every other kind it is the amount to authorize.
type PaymentRequest struct {
	Kind        enums.TenderKind
	Amount      decimal.Decimal
	WICCategory string
	WICUnits    int
}

// ApplyPayment records a tender. Terminal kinds are authorized first and the
// snapshot is only replaced when the terminal approves. The transaction
// completes when the remaining balance reaches zero.
func (s *service) ApplyPayment(ctx context.Context, tx txn.Transaction, req PaymentRequest) (txn.Transaction, error) {
	if err := requireStatus(tx, enums.TransactionStatusInProgress); err != nil {
		return txn.Transaction{}, err
	}
	if !req.Kind.IsValid() {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid tender kind").WithDetails(map[string]any{
			"kind": req.Kind,
		})
	}
	if !req.Amount.IsPositive() {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if req.Kind == enums.TenderWICCategory && (req.WICCategory == "" || req.WICUnits < 1) {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeValidation, "WIC category payments need a category and units")
	}
	if tx.IsEmpty() {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot pay for an empty transaction")
	}

	next := tx.Clone()
	if _, err := s.recalc(ctx, &next); err != nil {
		return txn.Transaction{}, err
	}
	remaining := next.Calculation.Totals.Remaining
	if !remaining.IsPositive() {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing left to pay")
	}

	payment := txn.Payment{
		ID:          uuid.New(),
		Kind:        req.Kind,
		Requested:   money.Round(req.Amount),
		Tendered:    money.Round(req.Amount),
		Refunded:    decimal.Zero,
		WICCategory: req.WICCategory,
		WICUnits:    req.WICUnits,
	}

	if !req.Kind.RequiresTerminal() {
		payment.Approved = payment.Tendered
		if req.Kind != enums.TenderCash {
			payment.Approved = money.Min(payment.Tendered, remaining)
		}
	} else {
		request := money.Min(payment.Requested, remaining)
		if req.Kind == enums.TenderSNAPFood {
			request = money.Min(request, snapOpen(next.Calculation, next.Lines))
		}
		if !request.IsPositive() {
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeValidation, "no eligible balance for tender").WithDetails(map[string]any{
				"kind": req.Kind,
			})
		}
		payment.Requested = request
		payment.Tendered = request

		result, err := s.terminal.Authorize(ctx, AuthorizationRequest{
			TransactionID: next.ID,
			LaneID:        next.LaneID,
			Kind:          req.Kind,
			Amount:        request,
			WICCategory:   req.WICCategory,
			WICUnits:      req.WICUnits,
		})
		if err != nil {
			return txn.Transaction{}, cancelled(ctx, pkgerrors.Wrap(pkgerrors.CodePaymentError, err, "terminal authorization failed"))
		}
		if ctx.Err() != nil {
			return txn.Transaction{}, cancelledAfterAuthorization(ctx, req.Kind, result)
		}
		switch r := result.(type) {
		case AuthApproved:
			payment.Approved = money.Min(money.Round(r.Amount), request)
			payment.Partial = payment.Approved.LessThan(request)
			payment.Reference = r.Reference
		case AuthDeclined:
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment declined").WithDetails(map[string]any{
				"kind":   req.Kind,
				"reason": r.Reason,
			})
		case AuthFailed:
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodePaymentError, "payment terminal error").WithDetails(map[string]any{
				"kind":    req.Kind,
				"message": r.Message,
			})
		case AuthCancelled:
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeCancelled, "payment cancelled on terminal")
		default:
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodePaymentError, "unrecognized terminal result")
		}
		if !payment.Approved.IsPositive() {
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodePaymentDeclined, "terminal approved nothing").WithDetails(map[string]any{
				"kind": req.Kind,
			})
		}
	}

	next.Payments = append(next.Payments, payment)
	if _, err := s.recalc(ctx, &next); err != nil {
		return txn.Transaction{}, err
	}
	if next.Calculation.Totals.Remaining.IsZero() {
		now := s.now()
		next.Status = enums.TransactionStatusCompleted
		next.CompletedAt = &now
	}
	s.commit(&next)
	return next, nil
}

// snapOpen is the SNAP eligible amount not yet covered by benefits.
func snapOpen(calc txn.Calculation, lines []txn.LineItem) decimal.Decimal {
	open := decimal.Zero
	for _, l := range lines {
		if !l.Active() || !l.SNAPEligible {
			continue
		}
		r, ok := calc.Line(l.ID)
		if !ok {
			continue
		}
		open = open.Add(money.NonNegative(money.Round(r.SubTotal).Sub(r.SNAPPaidAmount).Sub(r.WICPaidAmount)))
	}
	return open
}

// cancelledAfterAuthorization reports a request cancelled while the terminal
// answered. An approval that arrives too late is not applied, so its reference
// and amount go into the error details for the caller to reverse.
func cancelledAfterAuthorization(ctx context.Context, kind enums.TenderKind, result AuthorizationResult) error {
	err := pkgerrors.Wrap(pkgerrors.CodeCancelled, ctx.Err(), "request cancelled")
	if r, ok := result.(AuthApproved); ok {
		err = err.WithDetails(map[string]any{
			"kind":                   kind,
			"authorizationReference": r.Reference,
			"approvedAmount":         money.Round(r.Amount).StringFixed(2),
		})
	}
	return err
}
