package returns

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

var at = time.Date(2026, 7, 2, 18, 0, 0, 0, time.UTC)

type fixture struct {
	tx     txn.Transaction
	soda   uuid.UUID
	bread  uuid.UUID
	card   uuid.UUID
	snapID uuid.UUID
}

// completed basket: 2 soda (5.18 incl 0.20 deposit, tax 0.49) paid by credit,
// 1 bread 3.00 paid by SNAP.
func completed() fixture {
	f := fixture{soda: uuid.New(), bread: uuid.New(), card: uuid.New(), snapID: uuid.New()}
	f.tx = txn.Transaction{
		ID:     uuid.New(),
		Status: enums.TransactionStatusCompleted,
		Lines: []txn.LineItem{
			{ID: f.soda, Quantity: d("2"), ReturnedQuantity: decimal.Zero},
			{ID: f.bread, Quantity: d("1"), ReturnedQuantity: decimal.Zero, SNAPEligible: true},
		},
		Payments: []txn.Payment{
			{ID: f.snapID, Kind: enums.TenderSNAPFood, Approved: d("3.00"), Refunded: decimal.Zero},
			{ID: f.card, Kind: enums.TenderCredit, Approved: d("5.67"), Refunded: decimal.Zero},
		},
		Calculation: txn.Calculation{
			Lines: []txn.LineResult{
				{LineID: f.soda, SubTotal: d("5.18"), DepositTotal: d("0.20"), TaxTotal: d("0.49"), SNAPPaidAmount: decimal.Zero, WICPaidAmount: decimal.Zero},
				{LineID: f.bread, SubTotal: d("3.00"), DepositTotal: decimal.Zero, TaxTotal: decimal.Zero, SNAPPaidAmount: d("3.00"), WICPaidAmount: decimal.Zero},
			},
			Payments: []txn.PaymentApplication{
				{PaymentID: f.snapID, Kind: enums.TenderSNAPFood, Applied: d("3.00")},
				{PaymentID: f.card, Kind: enums.TenderCredit, Applied: d("5.67")},
			},
		},
	}
	return f
}

func TestPartialReturnsSumToOriginal(t *testing.T) {
	t.Parallel()

	f := completed()
	first, err := Compute(f.tx, []Request{{LineID: f.soda, Quantity: d("1")}}, enums.RefundPolicyCash, at)
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	if !first.Lines[0].Price.Equal(d("2.49")) || !first.Lines[0].Deposit.Equal(d("0.10")) || !first.Lines[0].Tax.Equal(d("0.25")) {
		t.Fatalf("unexpected first refund line %+v", first.Lines[0])
	}

	after := Apply(f.tx, first)
	second, err := Compute(after, []Request{{LineID: f.soda, Quantity: d("1")}}, enums.RefundPolicyCash, at)
	if err != nil {
		t.Fatalf("second return: %v", err)
	}
	if !second.Lines[0].Tax.Equal(d("0.24")) {
		t.Fatalf("second tax = %s, want 0.24", second.Lines[0].Tax)
	}
	if got := first.Total.Add(second.Total); !got.Equal(d("5.67")) {
		t.Fatalf("refunds total %s, want 5.67", got)
	}

	done := Apply(after, second)
	_, err = Compute(done, []Request{{LineID: f.soda, Quantity: d("1")}}, enums.RefundPolicyCash, at)
	if !pkgerrors.HasCode(err, pkgerrors.CodeOverReturnQuantity) {
		t.Fatalf("expected over-return, got %v", err)
	}
	if !f.tx.Lines[0].ReturnedQuantity.IsZero() {
		t.Fatalf("Apply must not modify its input")
	}
}

func TestRefundRoutesSNAPBack(t *testing.T) {
	t.Parallel()

	f := completed()
	refund, err := Compute(f.tx, []Request{{LineID: f.bread, Quantity: d("1")}}, enums.RefundPolicyCash, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refund.Tenders) != 1 || refund.Tenders[0].Kind != enums.TenderSNAPFood || *refund.Tenders[0].PaymentID != f.snapID {
		t.Fatalf("expected SNAP refund, got %+v", refund.Tenders)
	}
	if !refund.Tenders[0].Amount.Equal(d("3.00")) {
		t.Fatalf("amount = %s", refund.Tenders[0].Amount)
	}
}

func TestRefundPolicy(t *testing.T) {
	t.Parallel()

	f := completed()
	req := []Request{{LineID: f.soda, Quantity: d("2")}}

	cash, err := Compute(f.tx, req, enums.RefundPolicyCash, at)
	if err != nil {
		t.Fatalf("cash policy: %v", err)
	}
	if len(cash.Tenders) != 1 || cash.Tenders[0].Kind != enums.TenderCash || cash.Tenders[0].PaymentID != nil {
		t.Fatalf("expected cash payout, got %+v", cash.Tenders)
	}

	orig, err := Compute(f.tx, req, enums.RefundPolicyOriginalTender, at)
	if err != nil {
		t.Fatalf("original policy: %v", err)
	}
	if len(orig.Tenders) != 1 || orig.Tenders[0].Kind != enums.TenderCredit || !orig.Tenders[0].Amount.Equal(d("5.67")) {
		t.Fatalf("expected credit refund, got %+v", orig.Tenders)
	}
}

func TestComputeRejectsBadRequests(t *testing.T) {
	t.Parallel()

	f := completed()
	tests := []struct {
		name string
		tx   txn.Transaction
		reqs []Request
		code pkgerrors.Code
	}{
		{name: "empty", tx: f.tx, code: pkgerrors.CodeValidation},
		{name: "zero qty", tx: f.tx, reqs: []Request{{LineID: f.soda, Quantity: decimal.Zero}}, code: pkgerrors.CodeInvalidQuantity},
		{name: "unknown line", tx: f.tx, reqs: []Request{{LineID: uuid.New(), Quantity: d("1")}}, code: pkgerrors.CodeValidation},
		{name: "merged over-return", tx: f.tx, reqs: []Request{{LineID: f.soda, Quantity: d("1")}, {LineID: f.soda, Quantity: d("2")}}, code: pkgerrors.CodeOverReturnQuantity},
	}
	for _, tt := range tests {
		_, err := Compute(tt.tx, tt.reqs, enums.RefundPolicyCash, at)
		if !pkgerrors.HasCode(err, tt.code) {
			t.Fatalf("%s: expected %s, got %v", tt.name, tt.code, err)
		}
	}

	open := f.tx.Clone()
	open.Status = enums.TransactionStatusInProgress
	_, err := Compute(open, []Request{{LineID: f.soda, Quantity: d("1")}}, enums.RefundPolicyCash, at)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
