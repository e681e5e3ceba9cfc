package register

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lanecalc/internal/engine"
	"github.com/angelmondragon/lanecalc/internal/pricing"
	"github.com/angelmondragon/lanecalc/internal/returns"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/metrics"
	"github.com/angelmondragon/lanecalc/pkg/redis"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

const lane = "lane-4"

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type stubCatalog map[string]txn.Product

func (c stubCatalog) ProductByID(_ context.Context, id string) (txn.Product, error) {
	if p, ok := c[id]; ok {
		return p, nil
	}
	return txn.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (c stubCatalog) ProductByBarcode(ctx context.Context, code string) (txn.Product, error) {
	for _, p := range c {
		if p.Barcode == code {
			return p, nil
		}
	}
	return txn.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (stubCatalog) ActivePromotions(context.Context, time.Time) ([]txn.Promotion, error) {
	return nil, nil
}

type memorySink struct {
	mu        sync.Mutex
	finalized map[uuid.UUID]txn.Transaction
	refunds   []txn.Refund
	failNext  int
	// beforeRefund runs once, ahead of the next SaveRefund.
	beforeRefund func()
}

func newMemorySink() *memorySink {
	return &memorySink{finalized: map[uuid.UUID]txn.Transaction{}}
}

func (s *memorySink) SaveFinalized(_ context.Context, t txn.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return pkgerrors.New(pkgerrors.CodeDependency, "db unavailable")
	}
	s.finalized[t.ID] = t
	return nil
}

func (s *memorySink) SaveRefund(_ context.Context, original txn.Transaction, refund txn.Refund) error {
	s.mu.Lock()
	hook := s.beforeRefund
	s.beforeRefund = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.finalized[original.ID]; ok && stored.Version >= original.Version {
		return pkgerrors.New(pkgerrors.CodeConflict, "stored transaction changed since this snapshot was loaded")
	}
	s.finalized[original.ID] = original
	s.refunds = append(s.refunds, refund)
	return nil
}

func (s *memorySink) Get(_ context.Context, id uuid.UUID) (txn.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.finalized[id]
	if !ok {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return t, nil
}

type harness struct {
	session  *Session
	sink     *memorySink
	registry *prometheus.Registry
}

func newHarness(t *testing.T, terminal engine.TerminalFunc) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	if terminal == nil {
		terminal = func(_ context.Context, req engine.AuthorizationRequest) (engine.AuthorizationResult, error) {
			return engine.AuthApproved{Amount: req.Amount, Reference: "auth-1"}, nil
		}
	}
	catalog := stubCatalog{
		"SKU-BREAD": {ID: "SKU-BREAD", Barcode: "111", Description: "Bread", Category: "bakery", RetailPrice: d("3.00"), SNAPEligible: true},
		"SKU-MILK":  {ID: "SKU-MILK", Barcode: "222", Description: "Milk", Category: "dairy", RetailPrice: d("4.50"), SNAPEligible: true},
	}
	approvals := engine.ApprovalFunc(func(context.Context, engine.ApprovalRequest) (engine.ApprovalDecision, error) {
		return engine.ApprovalDecision{Approved: true, ApproverID: "mgr-1"}, nil
	})
	eng, err := engine.NewService(catalog, approvals, terminal, engine.Options{
		RefundPolicy:         enums.RefundPolicyCash,
		VoidRequiresApproval: true,
		Limits:               pricing.Limits{MaxUnit: d("99"), MaxWeighed: d("30")},
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	om := metrics.NewOperationMetrics(reg)
	sink := newMemorySink()
	session, err := NewSession(lane, Deps{
		Engine:  eng,
		Holds:   NewRedisHoldStore(client, time.Hour),
		Sink:    sink,
		Metrics: om,
	})
	require.NoError(t, err)
	return &harness{session: session, sink: sink, registry: reg}
}

func scan(id string) engine.ScanRequest {
	return engine.ScanRequest{Kind: enums.ScanKindAdd, ProductID: id}
}

func TestScanAndCashPaymentCompletesAndSyncs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	first, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	require.Equal(t, lane, first.LaneID)
	_, err = h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)

	done, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCash, Amount: d("10.00")})
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusCompleted, done.Status)
	require.True(t, done.Totals().ChangeDue.Equal(d("2.50")))

	stored, err := h.sink.Get(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, done.Version, stored.Version)

	next, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	require.NotEqual(t, done.ID, next.ID)
	require.Equal(t, float64(3), counter(t, h, OpScan, metrics.OutcomeOK))
}

func TestRejectedOperationKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	before, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)

	_, err = h.session.Scan(ctx, scan("SKU-NOPE"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	_, err = h.session.Scan(ctx, engine.ScanRequest{Kind: enums.ScanKindSetQuantity, LineID: before.Lines[0].ID, Quantity: d("120")})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))

	after := h.session.Current()
	require.Equal(t, before.Version, after.Version)
	require.Len(t, after.Lines, 1)
	require.Equal(t, float64(2), counter(t, h, OpScan, metrics.OutcomeRejected))
}

func TestSecondMutationWhileTerminalPendingIsBusy(t *testing.T) {
	ctx := context.Background()
	called := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(_ context.Context, req engine.AuthorizationRequest) (engine.AuthorizationResult, error) {
		close(called)
		<-release
		return engine.AuthApproved{Amount: req.Amount, Reference: "auth-9"}, nil
	})

	_, err := h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)

	type result struct {
		tx  txn.Transaction
		err error
	}
	done := make(chan result, 1)
	go func() {
		tx, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCredit, Amount: d("4.50")})
		done <- result{tx, err}
	}()
	<-called

	_, err = h.session.Scan(ctx, scan("SKU-BREAD"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionBusy))
	require.Len(t, h.session.Current().Lines, 1)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, enums.TransactionStatusCompleted, res.tx.Status)
	require.Equal(t, "auth-9", res.tx.Payments[0].Reference)
}

func TestDeclinedPaymentRevertsToPriorSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(context.Context, engine.AuthorizationRequest) (engine.AuthorizationResult, error) {
		return engine.AuthDeclined{Reason: "insufficient funds"}, nil
	})
	before, err := h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)

	_, err = h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderDebit, Amount: d("4.50")})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentDeclined))

	after := h.session.Current()
	require.Equal(t, before.Version, after.Version)
	require.Empty(t, after.Payments)
	require.Empty(t, h.sink.finalized)
}

func TestHoldAndRecall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.session.Hold(ctx)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	started, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	held, err := h.session.Hold(ctx)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusOnHold, held.Status)
	require.Equal(t, uuid.Nil, h.session.Current().ID)

	parked, err := h.session.Held(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	require.Equal(t, started.ID, parked[0].ID)

	_, err = h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)
	_, err = h.session.Recall(ctx, started.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, err = h.session.Hold(ctx)
	require.NoError(t, err)
	recalled, err := h.session.Recall(ctx, started.ID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusInProgress, recalled.Status)
	require.Equal(t, started.ID, h.session.Current().ID)

	parked, err = h.session.Held(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)

	_, err = h.session.Recall(ctx, uuid.New())
	require.Error(t, err)
}

func TestVoidFinalizesAndVoidHeldClearsStore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	voided, err := h.session.Void(ctx, engine.VoidRequest{Reason: "customer left"})
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusVoided, voided.Status)
	require.Equal(t, "mgr-1", voided.VoidApproverID)
	require.Contains(t, h.sink.finalized, voided.ID)

	parked, err := h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)
	_, err = h.session.Hold(ctx)
	require.NoError(t, err)
	out, err := h.session.VoidHeld(ctx, parked.ID, engine.VoidRequest{})
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusVoided, out.Status)

	list, err := h.session.Held(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSinkFailureIsRetriedOnNextOperation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.sink.failNext = 1

	_, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	done, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCash, Amount: d("3.00")})
	require.NoError(t, err)
	require.Equal(t, 1, h.session.PendingSync())

	_, err = h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)
	require.Zero(t, h.session.PendingSync())
	require.Contains(t, h.sink.finalized, done.ID)
}

func TestReturnAgainstStoredTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	_, err = h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)
	sale, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCash, Amount: d("7.50")})
	require.NoError(t, err)

	refund, err := h.session.Return(ctx, sale.ID, engine.ReturnRequest{
		Lines: []returns.Request{{LineID: sale.Lines[1].ID, Quantity: d("1")}},
	})
	require.NoError(t, err)
	require.True(t, refund.Total.Equal(d("4.50")))
	require.Len(t, h.sink.refunds, 1)

	stored, err := h.sink.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Refunds, 1)

	_, err = h.session.Return(ctx, uuid.New(), engine.ReturnRequest{})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestReturnRecomputesWhenAnotherLaneRefundedFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	other, err := NewSession("lane-5", h.session.deps)
	require.NoError(t, err)

	_, err = h.session.Scan(ctx, engine.ScanRequest{Kind: enums.ScanKindAdd, ProductID: "SKU-MILK", Quantity: d("2")})
	require.NoError(t, err)
	sale, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCash, Amount: d("9.00")})
	require.NoError(t, err)
	lineID := sale.Lines[0].ID
	one := engine.ReturnRequest{Lines: []returns.Request{{LineID: lineID, Quantity: d("1")}}}

	// The other lane commits its refund after this lane loaded the original.
	var otherErr error
	h.sink.beforeRefund = func() {
		_, otherErr = other.Return(ctx, sale.ID, one)
	}
	refund, err := h.session.Return(ctx, sale.ID, one)
	require.NoError(t, err)
	require.NoError(t, otherErr)
	require.True(t, refund.Total.Equal(d("4.50")))

	stored, err := h.sink.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Refunds, 2)
	require.True(t, stored.Lines[0].ReturnedQuantity.Equal(d("2")))
	require.Len(t, h.sink.refunds, 2)

	_, err = h.session.Return(ctx, sale.ID, one)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOverReturnQuantity), "got %v", err)
	require.Len(t, h.sink.refunds, 2)
}

func TestReturnRecomputeAgainstFullyRefundedOriginal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	other, err := NewSession("lane-5", h.session.deps)
	require.NoError(t, err)

	_, err = h.session.Scan(ctx, scan("SKU-MILK"))
	require.NoError(t, err)
	sale, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCash, Amount: d("4.50")})
	require.NoError(t, err)
	all := engine.ReturnRequest{Lines: []returns.Request{{LineID: sale.Lines[0].ID, Quantity: d("1")}}}

	var (
		otherRefund txn.Refund
		otherErr    error
	)
	h.sink.beforeRefund = func() {
		otherRefund, otherErr = other.Return(ctx, sale.ID, all)
	}
	_, err = h.session.Return(ctx, sale.ID, all)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOverReturnQuantity), "got %v", err)
	require.NoError(t, otherErr)
	require.Len(t, h.sink.refunds, 1, "the sale is refunded once")
	require.True(t, otherRefund.Total.Equal(d("4.50")))
	require.Equal(t, float64(1), counter(t, h, OpReturn, metrics.OutcomeRejected))
}

func TestPanickingCollaboratorReleasesSession(t *testing.T) {
	ctx := context.Background()
	calls := 0
	h := newHarness(t, func(_ context.Context, req engine.AuthorizationRequest) (engine.AuthorizationResult, error) {
		calls++
		if calls == 1 {
			panic("terminal driver crashed")
		}
		return engine.AuthApproved{Amount: req.Amount, Reference: "auth-2"}, nil
	})
	before, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCredit, Amount: d("3.00")})
	})
	require.Equal(t, before.Version, h.session.Current().Version)
	require.Empty(t, h.session.Current().Payments)

	done, err := h.session.Pay(ctx, engine.PaymentRequest{Kind: enums.TenderCredit, Amount: d("3.00")})
	require.NoError(t, err, "session must not stay busy after a panic")
	require.Equal(t, enums.TransactionStatusCompleted, done.Status)
}

func TestAssignCustomerBeforeFirstScan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.session.AssignCustomer(ctx, "staff")
	require.NoError(t, err)
	tx, err := h.session.Scan(ctx, scan("SKU-BREAD"))
	require.NoError(t, err)
	require.Equal(t, "staff", tx.CustomerGroup)
}

func TestNewSessionValidatesDeps(t *testing.T) {
	_, err := NewSession("", Deps{})
	require.Error(t, err)
	_, err = NewSession(lane, Deps{})
	require.Error(t, err)
	_, err = NewManager(Deps{})
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	require.Equal(t, metrics.OutcomeOK, classify(nil))
	require.Equal(t, metrics.OutcomeRejected, classify(pkgerrors.New(pkgerrors.CodeApprovalDenied, "no")))
	require.Equal(t, metrics.OutcomeFailed, classify(pkgerrors.New(pkgerrors.CodeInconsistentTotals, "drift")))
	require.Equal(t, metrics.OutcomeFailed, classify(pkgerrors.New(pkgerrors.CodePaymentError, "timeout")))
	require.Equal(t, metrics.OutcomeFailed, classify(errors.New("plain")))
}

func counter(t *testing.T, h *harness, op, outcome string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "lanecalc_operation_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["operation"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
