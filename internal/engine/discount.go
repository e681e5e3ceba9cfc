package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/discounts"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// DiscountScope is LineScope or InvoiceScope.
type DiscountScope interface {
	isDiscountScope()
}

// LineScope targets a single line.
type LineScope struct {
	LineID uuid.UUID
}

// InvoiceScope targets every line without a line discount.
type InvoiceScope struct{}

func (LineScope) isDiscountScope()    {}
func (InvoiceScope) isDiscountScope() {}

// DiscountRequest sets or clears a manual discount. The discount's Approval is
// the three-state authorization the cashier already holds.
type DiscountRequest struct {
	Scope    DiscountScope
	Discount txn.Discount
	Clear    bool
}

// ApplyDiscount sets or clears a discount. A discount that puts a line below
// its floor, or meets the configured percentage threshold, needs approval.
// When approval is denied or cancelled the input snapshot stays as it was.
func (s *service) ApplyDiscount(ctx context.Context, tx txn.Transaction, req DiscountRequest) (txn.Transaction, error) {
	if err := requireStatus(tx, enums.TransactionStatusInProgress); err != nil {
		return txn.Transaction{}, err
	}
	if !req.Clear {
		if err := discounts.Validate(req.Discount); err != nil {
			return txn.Transaction{}, err
		}
	}

	next := tx.Clone()
	var (
		target   **txn.Discount
		action   enums.ApprovalAction
		lineID   *uuid.UUID
		scopeKey string
	)
	switch scope := req.Scope.(type) {
	case LineScope:
		idx, err := activeLine(next, scope.LineID)
		if err != nil {
			return txn.Transaction{}, err
		}
		id := scope.LineID
		target, action, lineID, scopeKey = &next.Lines[idx].Discount, enums.ApprovalActionLineDiscount, &id, string(discounts.ScopeLine)
	case InvoiceScope:
		target, action, scopeKey = &next.InvoiceDiscount, enums.ApprovalActionInvoiceDiscount, string(discounts.ScopeInvoice)
	default:
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeValidation, "discount scope required")
	}

	if req.Clear {
		*target = nil
		if _, err := s.recalc(ctx, &next); err != nil {
			return txn.Transaction{}, err
		}
		s.commit(&next)
		return next, nil
	}

	d := req.Discount
	*target = &d
	p, err := s.recalc(ctx, &next)
	if err != nil {
		return txn.Transaction{}, err
	}
	if err := requireBalanceDue(next); err != nil {
		return txn.Transaction{}, err
	}

	if s.needsApproval(p, d, scopeKey, lineID) {
		approval, err := s.approve(ctx, d.Approval, ApprovalRequest{
			Action:        action,
			Amount:        discountAmount(p, scopeKey, lineID),
			TransactionID: next.ID,
			LaneID:        next.LaneID,
			LineID:        lineID,
			Reason:        d.Reason,
		})
		if err != nil {
			return txn.Transaction{}, err
		}
		d.Approval = approval
		*target = &d
		if _, err := s.recalc(ctx, &next); err != nil {
			return txn.Transaction{}, err
		}
	}
	s.commit(&next)
	return next, nil
}

func (s *service) needsApproval(p pass, d txn.Discount, scope string, lineID *uuid.UUID) bool {
	if d.Approval.Approved() {
		return false
	}
	for _, v := range p.discounts.Unapproved() {
		if string(v.Scope) != scope {
			continue
		}
		if lineID == nil || v.LineID == *lineID {
			return true
		}
	}
	if pct, ok := d.Value.(txn.PercentOff); ok && s.opts.ApprovalPercentThreshold.IsPositive() {
		return pct.Percent.GreaterThanOrEqual(s.opts.ApprovalPercentThreshold)
	}
	return false
}

func discountAmount(p pass, scope string, lineID *uuid.UUID) decimal.Decimal {
	if scope == string(discounts.ScopeInvoice) {
		return p.discounts.InvoiceTotal
	}
	if lineID != nil {
		if r, ok := p.discounts.Line(*lineID); ok {
			return r.LineDiscount
		}
	}
	return decimal.Zero
}
