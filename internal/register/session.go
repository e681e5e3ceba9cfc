// Package register runs the per-lane register session: one mutation at a time
// against the current snapshot, held transactions parked in a hold store, and
// finalized snapshots handed to the sync sink.
package register

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lanecalc/internal/engine"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/metrics"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Operation names used for logs and metrics.
const (
	OpScan           = "apply_scan"
	OpDiscount       = "apply_discount"
	OpPayment        = "apply_payment"
	OpHold           = "hold"
	OpRecall         = "recall"
	OpVoid           = "void"
	OpReturn         = "process_return"
	OpAssignCustomer = "assign_customer"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Engine  engine.Service
	Holds   HoldStore
	Sink    Sink
	Metrics *metrics.OperationMetrics
	Logger  *logger.Logger
}

func (d Deps) validate() error {
	if d.Engine == nil {
		return errors.New("engine required")
	}
	if d.Holds == nil {
		return errors.New("hold store required")
	}
	if d.Sink == nil {
		return errors.New("sink required")
	}
	return nil
}

// Session serializes the operations of one lane. An operation that suspends
// on the approval service or the terminal keeps the session busy; a second
// mutation during that time fails with SESSION_BUSY. A failed operation
// leaves the current snapshot as it was.
type Session struct {
	laneID string
	deps   Deps
	logg   *logger.Logger

	mu      sync.Mutex
	busy    bool
	current txn.Transaction
	pending []txn.Transaction
}

// NewSession starts an idle session for laneID.
func NewSession(laneID string, deps Deps) (*Session, error) {
	if laneID == "" {
		return nil, errors.New("lane id required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Session{laneID: laneID, deps: deps, logg: logg, current: txn.Transaction{LaneID: laneID}}, nil
}

// LaneID returns the lane the session belongs to.
func (s *Session) LaneID() string { return s.laneID }

// Current returns a copy of the current snapshot. The zero ID means no
// transaction has been started.
func (s *Session) Current() txn.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// PendingSync reports how many finalized snapshots still wait for the sink.
func (s *Session) PendingSync() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Scan applies a scan, quantity change or removal. A finished transaction is
// replaced by a new one on the first scan.
func (s *Session) Scan(ctx context.Context, req engine.ScanRequest) (txn.Transaction, error) {
	return s.run(ctx, OpScan, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if cur.Status.IsFinal() {
			cur = s.blank(cur.CustomerGroup)
		}
		next, err := s.deps.Engine.ApplyScan(ctx, cur, req)
		return next, next, err
	})
}

// Discount sets or clears a manual discount on the current transaction.
func (s *Session) Discount(ctx context.Context, req engine.DiscountRequest) (txn.Transaction, error) {
	return s.run(ctx, OpDiscount, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if err := requireStarted(cur); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		next, err := s.deps.Engine.ApplyDiscount(ctx, cur, req)
		return next, next, err
	})
}

// Pay tenders a payment. When the payment completes the transaction the
// snapshot is handed to the sink; a sink failure does not undo the payment
// and the snapshot is retried on the next operation.
func (s *Session) Pay(ctx context.Context, req engine.PaymentRequest) (txn.Transaction, error) {
	return s.run(ctx, OpPayment, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if err := requireStarted(cur); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		next, err := s.deps.Engine.ApplyPayment(ctx, cur, req)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		if next.Status == enums.TransactionStatusCompleted {
			s.finalize(ctx, next)
		}
		return next, next, nil
	})
}

// AssignCustomer sets the customer group used for group pricing.
func (s *Session) AssignCustomer(ctx context.Context, group string) (txn.Transaction, error) {
	return s.run(ctx, OpAssignCustomer, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if cur.ID == uuid.Nil || cur.Status.IsFinal() {
			next := s.blank(group)
			return next, next, nil
		}
		if cur.Status != enums.TransactionStatusInProgress {
			return txn.Transaction{}, txn.Transaction{}, pkgerrors.New(pkgerrors.CodeStateConflict, "operation not allowed in current status")
		}
		if len(cur.Payments) > 0 {
			return txn.Transaction{}, txn.Transaction{}, pkgerrors.New(pkgerrors.CodeStateConflict, "customer cannot change after payments are applied")
		}
		cur = cur.Clone()
		cur.CustomerGroup = group
		next, err := s.deps.Engine.Recalculate(ctx, cur)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		next.Version++
		next.UpdatedAt = time.Now().UTC()
		return next, next, nil
	})
}

// Hold parks the current transaction and leaves the session empty.
func (s *Session) Hold(ctx context.Context) (txn.Transaction, error) {
	return s.run(ctx, OpHold, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if err := requireStarted(cur); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		held, err := s.deps.Engine.HoldTransaction(ctx, cur)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		if err := s.deps.Holds.Put(ctx, held); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		return held, s.blank(""), nil
	})
}

// Recall resumes a held transaction. The session must not have an unfinished
// transaction with lines in it.
func (s *Session) Recall(ctx context.Context, id uuid.UUID) (txn.Transaction, error) {
	return s.run(ctx, OpRecall, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if cur.ID != uuid.Nil && cur.Status == enums.TransactionStatusInProgress && !cur.IsEmpty() {
			return txn.Transaction{}, txn.Transaction{}, pkgerrors.New(pkgerrors.CodeStateConflict, "hold or finish the current transaction first").WithDetails(map[string]any{
				"transaction_id": cur.ID.String(),
			})
		}
		held, err := s.deps.Holds.Get(ctx, s.laneID, id)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		next, err := s.deps.Engine.RecallTransaction(ctx, held)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		if err := s.deps.Holds.Remove(ctx, s.laneID, id); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		return next, next, nil
	})
}

// Held lists the transactions parked on this lane.
func (s *Session) Held(ctx context.Context) ([]txn.Transaction, error) {
	return s.deps.Holds.List(ctx, s.laneID)
}

// Void cancels the current transaction.
func (s *Session) Void(ctx context.Context, req engine.VoidRequest) (txn.Transaction, error) {
	return s.run(ctx, OpVoid, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		if err := requireStarted(cur); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		next, err := s.deps.Engine.VoidTransaction(ctx, cur, req)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		s.finalize(ctx, next)
		return next, next, nil
	})
}

// VoidHeld cancels a parked transaction without recalling it.
func (s *Session) VoidHeld(ctx context.Context, id uuid.UUID, req engine.VoidRequest) (txn.Transaction, error) {
	return s.run(ctx, OpVoid, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		held, err := s.deps.Holds.Get(ctx, s.laneID, id)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		next, err := s.deps.Engine.VoidTransaction(ctx, held, req)
		if err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		if err := s.deps.Holds.Remove(ctx, s.laneID, id); err != nil {
			return txn.Transaction{}, txn.Transaction{}, err
		}
		s.finalize(ctx, next)
		return next, cur, nil
	})
}

// Return processes a return against a completed transaction loaded from the
// sink. The refund is only reported once the sink accepted it. When the
// stored original changed between load and save the sink reports CONFLICT;
// the return is then recomputed against a fresh copy, so quantities refunded
// on another lane count against this one.
func (s *Session) Return(ctx context.Context, originalID uuid.UUID, req engine.ReturnRequest) (txn.Refund, error) {
	var refund txn.Refund
	_, err := s.run(ctx, OpReturn, func(ctx context.Context, cur txn.Transaction) (txn.Transaction, txn.Transaction, error) {
		for attempt := 1; ; attempt++ {
			updated, r, err := s.returnOnce(ctx, originalID, req)
			if err == nil {
				refund = r
				return updated, cur, nil
			}
			if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) || attempt >= returnAttempts || ctx.Err() != nil {
				return txn.Transaction{}, txn.Transaction{}, err
			}
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"original_id": originalID.String(),
				"attempt":     attempt,
			}), "original changed during return, recomputing")
		}
	})
	if err != nil {
		return txn.Refund{}, err
	}
	return refund, nil
}

// returnAttempts bounds how often Return recomputes after a CONFLICT.
const returnAttempts = 3

func (s *Session) returnOnce(ctx context.Context, originalID uuid.UUID, req engine.ReturnRequest) (txn.Transaction, txn.Refund, error) {
	original, err := s.deps.Sink.Get(ctx, originalID)
	if err != nil {
		return txn.Transaction{}, txn.Refund{}, err
	}
	updated, refund, err := s.deps.Engine.ProcessReturn(ctx, original, req)
	if err != nil {
		return txn.Transaction{}, txn.Refund{}, err
	}
	if err := s.deps.Sink.SaveRefund(ctx, updated, refund); err != nil {
		return txn.Transaction{}, txn.Refund{}, err
	}
	return updated, refund, nil
}

type operation func(ctx context.Context, cur txn.Transaction) (result, current txn.Transaction, err error)

func (s *Session) run(ctx context.Context, name string, op operation) (txn.Transaction, error) {
	start := time.Now()
	ctx = s.logg.WithOperation(s.logg.WithLaneID(ctx, s.laneID), name)

	cur, err := s.acquire()
	if err != nil {
		s.observe(ctx, name, start, err)
		return txn.Transaction{}, err
	}
	s.retryPending(ctx)
	if cur.ID != uuid.Nil {
		ctx = s.logg.WithTransactionID(ctx, cur.ID.String())
	}

	result, err := s.apply(ctx, cur, op)
	s.observe(ctx, name, start, err)
	if err != nil {
		return txn.Transaction{}, err
	}
	return result, nil
}

// apply runs op and releases the session however op ends. The snapshot is
// only replaced when op returns without error; a panic leaves it as it was
// and propagates.
func (s *Session) apply(ctx context.Context, cur txn.Transaction, op operation) (result txn.Transaction, err error) {
	var (
		next   txn.Transaction
		commit bool
	)
	defer func() { s.release(next, commit) }()
	result, next, err = op(ctx, cur)
	commit = err == nil
	return result, err
}

func (s *Session) acquire() (txn.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeSessionBusy, "another operation is in progress")
	}
	s.busy = true
	return s.current.Clone(), nil
}

func (s *Session) release(next txn.Transaction, commit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if commit {
		s.current = next
	}
	s.busy = false
}

func (s *Session) finalize(ctx context.Context, t txn.Transaction) {
	if err := s.deps.Sink.SaveFinalized(ctx, t); err != nil {
		s.logg.Error(ctx, "finalized transaction queued for retry", err)
		s.mu.Lock()
		s.pending = append(s.pending, t)
		s.mu.Unlock()
	}
}

// retryPending runs while the session is busy, so no other operation
// touches pending concurrently.
func (s *Session) retryPending(ctx context.Context) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	var left []txn.Transaction
	for _, t := range pending {
		if err := s.deps.Sink.SaveFinalized(ctx, t); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
				continue
			}
			left = append(left, t)
		}
	}
	if len(left) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "pending", len(left)), "finalized transactions still waiting for sync")
	}
	s.mu.Lock()
	s.pending = append(left, s.pending...)
	s.mu.Unlock()
}

func (s *Session) observe(ctx context.Context, name string, start time.Time, err error) {
	outcome := classify(err)
	s.deps.Metrics.Observe(name, outcome, time.Since(start))
	switch outcome {
	case metrics.OutcomeOK:
		s.logg.Debug(ctx, "operation committed")
	case metrics.OutcomeRejected:
		s.logg.Warn(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "operation rejected")
	default:
		s.logg.Error(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "operation failed", err)
	}
}

func classify(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	typed := pkgerrors.As(err)
	if typed == nil || pkgerrors.IsFatal(err) {
		return metrics.OutcomeFailed
	}
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency, pkgerrors.CodePaymentError:
		return metrics.OutcomeFailed
	}
	return metrics.OutcomeRejected
}

func (s *Session) blank(group string) txn.Transaction {
	return txn.Transaction{LaneID: s.laneID, CustomerGroup: group}
}

func requireStarted(cur txn.Transaction) error {
	if cur.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no transaction in progress")
	}
	return nil
}
