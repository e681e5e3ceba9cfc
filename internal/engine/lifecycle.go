package engine

import (
	"context"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// VoidRequest carries the authorization for voiding a transaction.
type VoidRequest struct {
	Approval txn.Approval
	Reason   string
}

// HoldTransaction parks an in-progress transaction that has lines and no
// payments.
func (s *service) HoldTransaction(ctx context.Context, tx txn.Transaction) (txn.Transaction, error) {
	if err := requireStatus(tx, enums.TransactionStatusInProgress); err != nil {
		return txn.Transaction{}, err
	}
	if err := requireNoPayments(tx, "hold"); err != nil {
		return txn.Transaction{}, err
	}
	if tx.IsEmpty() {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot hold an empty transaction")
	}
	next := tx.Clone()
	next.Status = enums.TransactionStatusOnHold
	s.commit(&next)
	return next, nil
}

// RecallTransaction resumes a held transaction and refreshes its figures.
func (s *service) RecallTransaction(ctx context.Context, tx txn.Transaction) (txn.Transaction, error) {
	if err := requireStatus(tx, enums.TransactionStatusOnHold); err != nil {
		return txn.Transaction{}, err
	}
	next := tx.Clone()
	next.Status = enums.TransactionStatusInProgress
	if _, err := s.recalc(ctx, &next); err != nil {
		return txn.Transaction{}, err
	}
	s.commit(&next)
	return next, nil
}

// VoidTransaction cancels a transaction with no payments applied.
func (s *service) VoidTransaction(ctx context.Context, tx txn.Transaction, req VoidRequest) (txn.Transaction, error) {
	if err := requireStatus(tx, enums.TransactionStatusInProgress, enums.TransactionStatusOnHold); err != nil {
		return txn.Transaction{}, err
	}
	if err := requireNoPayments(tx, "void"); err != nil {
		return txn.Transaction{}, err
	}
	next := tx.Clone()
	if s.opts.VoidRequiresApproval {
		approval, err := s.approve(ctx, req.Approval, ApprovalRequest{
			Action:        enums.ApprovalActionVoid,
			Amount:        tx.Calculation.Totals.GrandTotal,
			TransactionID: tx.ID,
			LaneID:        tx.LaneID,
			Reason:        req.Reason,
		})
		if err != nil {
			return txn.Transaction{}, err
		}
		next.VoidApproverID = approval.ApproverID
	}
	next.Status = enums.TransactionStatusVoided
	s.commit(&next)
	return next, nil
}
