package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

var fixedNow = time.Date(2026, 4, 18, 14, 30, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func dp(v string) *decimal.Decimal {
	out := d(v)
	return &out
}

type fakeCatalog struct {
	products   map[string]txn.Product
	promotions []txn.Promotion
	promoErr   error
}

func newCatalog(products ...txn.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]txn.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) ProductByID(_ context.Context, id string) (txn.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return txn.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func (c *fakeCatalog) ProductByBarcode(_ context.Context, barcode string) (txn.Product, error) {
	for _, p := range c.products {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return txn.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (c *fakeCatalog) ActivePromotions(_ context.Context, at time.Time) ([]txn.Promotion, error) {
	if c.promoErr != nil {
		return nil, c.promoErr
	}
	var out []txn.Promotion
	for _, p := range c.promotions {
		if p.ActiveAt(at) {
			out = append(out, p)
		}
	}
	return out, nil
}

type approvalRecorder struct {
	mu       sync.Mutex
	decision ApprovalDecision
	err      error
	requests []ApprovalRequest
}

func (a *approvalRecorder) RequestApproval(_ context.Context, req ApprovalRequest) (ApprovalDecision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return a.decision, a.err
}

type terminalStub struct {
	mu       sync.Mutex
	results  []AuthorizationResult
	err      error
	requests []AuthorizationRequest
}

// Authorize returns the queued results in order; once exhausted it approves
// the full amount.
func (t *terminalStub) Authorize(_ context.Context, req AuthorizationRequest) (AuthorizationResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.err != nil {
		return nil, t.err
	}
	if len(t.results) == 0 {
		return AuthApproved{Amount: req.Amount, Reference: "auth-ok"}, nil
	}
	next := t.results[0]
	t.results = t.results[1:]
	return next, nil
}

type harness struct {
	svc       Service
	catalog   *fakeCatalog
	approvals *approvalRecorder
	terminal  *terminalStub
}

func newHarness(t *testing.T, opts Options, products ...txn.Product) *harness {
	t.Helper()
	h := &harness{
		catalog:   newCatalog(products...),
		approvals: &approvalRecorder{decision: ApprovalDecision{Approved: true, ApproverID: "mgr-1"}},
		terminal:  &terminalStub{},
	}
	opts.Clock = func() time.Time { return fixedNow }
	svc, err := NewService(h.catalog, h.approvals, h.terminal, opts)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) scan(t *testing.T, tx txn.Transaction, productID, qty string) txn.Transaction {
	t.Helper()
	next, err := h.svc.ApplyScan(context.Background(), tx, ScanRequest{ProductID: productID, Quantity: d(qty)})
	require.NoError(t, err)
	return next
}

func taxed(rate string) []txn.TaxComponent {
	return []txn.TaxComponent{{TaxID: "sales", Rate: d(rate)}}
}

func lineResult(t *testing.T, tx txn.Transaction, productID string) (txn.LineItem, txn.LineResult) {
	t.Helper()
	for _, l := range tx.Lines {
		if l.ProductID == productID && l.Active() {
			r, ok := tx.Calculation.Line(l.ID)
			require.True(t, ok)
			return l, r
		}
	}
	t.Fatalf("no active line for %s", productID)
	return txn.LineItem{}, txn.LineResult{}
}

func emptyTx() txn.Transaction {
	return txn.Transaction{LaneID: "lane-3"}
}
