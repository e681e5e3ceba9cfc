// Package engine turns cart mutations into new transaction snapshots. Every
// operation takes the current snapshot and a payload and returns either a new
// snapshot or a typed error; the input snapshot is never modified.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/discounts"
	"github.com/angelmondragon/lanecalc/internal/pricing"
	"github.com/angelmondragon/lanecalc/internal/returns"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Service exposes the register operations.
type Service interface {
	ApplyScan(ctx context.Context, tx txn.Transaction, req ScanRequest) (txn.Transaction, error)
	ApplyDiscount(ctx context.Context, tx txn.Transaction, req DiscountRequest) (txn.Transaction, error)
	ApplyPayment(ctx context.Context, tx txn.Transaction, req PaymentRequest) (txn.Transaction, error)
	HoldTransaction(ctx context.Context, tx txn.Transaction) (txn.Transaction, error)
	RecallTransaction(ctx context.Context, tx txn.Transaction) (txn.Transaction, error)
	VoidTransaction(ctx context.Context, tx txn.Transaction, req VoidRequest) (txn.Transaction, error)
	ProcessReturn(ctx context.Context, original txn.Transaction, req ReturnRequest) (txn.Transaction, txn.Refund, error)
	Recalculate(ctx context.Context, tx txn.Transaction) (txn.Transaction, error)
}

// Options are the store level settings the operations apply.
type Options struct {
	ServiceFee   decimal.Decimal
	RefundPolicy enums.RefundPolicy
	// ApprovalPercentThreshold makes percentage discounts at or above it need
	// approval even when no floor is crossed. Zero disables the check.
	ApprovalPercentThreshold decimal.Decimal
	VoidRequiresApproval     bool
	Limits                   pricing.Limits
	Clock                    func() time.Time
}

type service struct {
	catalog   Catalog
	approvals ApprovalService
	terminal  Terminal
	opts      Options
}

// NewService builds the engine service.
func NewService(catalog Catalog, approvals ApprovalService, terminal Terminal, opts Options) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if approvals == nil {
		return nil, fmt.Errorf("approval service required")
	}
	if terminal == nil {
		return nil, fmt.Errorf("payment terminal required")
	}
	if opts.RefundPolicy == "" {
		opts.RefundPolicy = enums.RefundPolicyCash
	}
	if !opts.RefundPolicy.IsValid() {
		return nil, fmt.Errorf("invalid refund policy %q", opts.RefundPolicy)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &service{catalog: catalog, approvals: approvals, terminal: terminal, opts: opts}, nil
}

func (s *service) now() time.Time {
	return s.opts.Clock().UTC()
}

// Recalculate refreshes the derived figures of a snapshot without mutating
// anything else.
func (s *service) Recalculate(ctx context.Context, tx txn.Transaction) (txn.Transaction, error) {
	next := tx.Clone()
	if _, err := s.recalc(ctx, &next); err != nil {
		return txn.Transaction{}, err
	}
	return next, nil
}

// recalc recomputes next in place and returns the pipeline pass for callers
// that need the discount stack.
func (s *service) recalc(ctx context.Context, next *txn.Transaction) (pass, error) {
	promos, err := s.catalog.ActivePromotions(ctx, next.CreatedAt)
	if err != nil {
		return pass{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active promotions")
	}
	p, err := run(*next, promos, CalcOptions{At: next.CreatedAt, Fee: s.opts.ServiceFee})
	if err != nil {
		return pass{}, err
	}
	next.Calculation = p.calc
	return p, nil
}

// commit stamps a successfully mutated snapshot.
func (s *service) commit(next *txn.Transaction) {
	next.Version++
	next.UpdatedAt = s.now()
}

func requireStatus(tx txn.Transaction, allowed ...enums.TransactionStatus) error {
	for _, st := range allowed {
		if tx.Status == st {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "operation not allowed in current status").WithDetails(map[string]any{
		"status": tx.Status,
	})
}

func requireNoPayments(tx txn.Transaction, action string) error {
	if len(tx.Payments) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, action+" not allowed after payments are applied").WithDetails(map[string]any{
		"payments": len(tx.Payments),
	})
}

// requireBalanceDue rejects a change to a partly paid transaction that would
// leave nothing to pay.
func requireBalanceDue(next txn.Transaction) error {
	if len(next.Payments) == 0 || next.Calculation.Totals.Remaining.IsPositive() {
		return nil
	}
	totals := next.Calculation.Totals
	return pkgerrors.New(pkgerrors.CodeStateConflict, "change would leave the transaction fully paid").WithDetails(map[string]any{
		"grandTotal": totals.GrandTotal.StringFixed(2),
		"paid":       totals.Paid.StringFixed(2),
		"payments":   len(next.Payments),
	})
}

// approveFloorViolations asks for approval of each unapproved discount that
// the last recalculation found below a line floor. It reports whether any
// approval was recorded on next.
func (s *service) approveFloorViolations(ctx context.Context, next *txn.Transaction, p pass) (bool, error) {
	changed := false
	for _, v := range p.discounts.Unapproved() {
		switch v.Scope {
		case discounts.ScopeInvoice:
			if next.InvoiceDiscount == nil || next.InvoiceDiscount.Approval.Approved() {
				continue
			}
			d := *next.InvoiceDiscount
			approval, err := s.approve(ctx, d.Approval, ApprovalRequest{
				Action:        enums.ApprovalActionInvoiceDiscount,
				Amount:        p.discounts.InvoiceTotal,
				TransactionID: next.ID,
				LaneID:        next.LaneID,
				Reason:        d.Reason,
			})
			if err != nil {
				return changed, err
			}
			d.Approval = approval
			next.InvoiceDiscount = &d
			changed = true
		case discounts.ScopeLine:
			idx := next.LineIndex(v.LineID)
			if idx < 0 || next.Lines[idx].Discount == nil || next.Lines[idx].Discount.Approval.Approved() {
				continue
			}
			d := *next.Lines[idx].Discount
			id := v.LineID
			approval, err := s.approve(ctx, d.Approval, ApprovalRequest{
				Action:        enums.ApprovalActionLineDiscount,
				Amount:        discountAmount(p, string(discounts.ScopeLine), &id),
				TransactionID: next.ID,
				LaneID:        next.LaneID,
				LineID:        &id,
				Reason:        d.Reason,
			})
			if err != nil {
				return changed, err
			}
			d.Approval = approval
			next.Lines[idx].Discount = &d
			changed = true
		}
	}
	return changed, nil
}

// cancelled maps a context error raised while suspended into OPERATION_CANCELLED.
func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCancelled, ctxErr, "request cancelled")
	}
	return err
}

// approve resolves a three-state approval. Approved passes through, Denied
// fails, anything else asks the approval service.
func (s *service) approve(ctx context.Context, current txn.Approval, req ApprovalRequest) (txn.Approval, error) {
	switch current.State {
	case enums.ApprovalApproved:
		return current, nil
	case enums.ApprovalDenied:
		return current, pkgerrors.New(pkgerrors.CodeApprovalDenied, "approval denied").WithDetails(map[string]any{
			"action": req.Action,
		})
	}
	decision, err := s.approvals.RequestApproval(ctx, req)
	if err != nil {
		return current, cancelled(ctx, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approval service"))
	}
	if ctx.Err() != nil {
		return current, cancelled(ctx, nil)
	}
	if !decision.Approved {
		return txn.Approval{State: enums.ApprovalDenied}, pkgerrors.New(pkgerrors.CodeApprovalDenied, "approval denied").WithDetails(map[string]any{
			"action": req.Action,
			"reason": decision.Reason,
		})
	}
	return txn.Approval{State: enums.ApprovalApproved, ApproverID: decision.ApproverID}, nil
}

// ReturnRequest lists the lines to return. Policy overrides the configured
// refund policy when set.
type ReturnRequest struct {
	Lines  []returns.Request
	Policy enums.RefundPolicy
}

// ProcessReturn computes a refund against a completed transaction and returns
// the updated original with the refund recorded.
func (s *service) ProcessReturn(ctx context.Context, original txn.Transaction, req ReturnRequest) (txn.Transaction, txn.Refund, error) {
	policy := req.Policy
	if policy == "" {
		policy = s.opts.RefundPolicy
	}
	refund, err := returns.Compute(original, req.Lines, policy, s.now())
	if err != nil {
		return txn.Transaction{}, txn.Refund{}, err
	}
	next := returns.Apply(original, refund)
	s.commit(&next)
	return next, refund, nil
}
