package payments

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestAllocateFollowsPrecedence(t *testing.T) {
	t.Parallel()

	cash := Tender{PaymentID: uuid.New(), Kind: enums.TenderCash, Tendered: d("20.00"), Approved: d("20.00")}
	card := Tender{PaymentID: uuid.New(), Kind: enums.TenderCredit, Tendered: d("5.00"), Approved: d("5.00")}
	snap := Tender{PaymentID: uuid.New(), Kind: enums.TenderSNAPFood, Tendered: d("14.00"), Approved: d("14.00")}

	res := Allocate(d("30.00"), []Tender{cash, card, snap})

	kinds := []enums.TenderKind{enums.TenderSNAPFood, enums.TenderCredit, enums.TenderCash}
	for i, k := range kinds {
		if res.Applications[i].Kind != k {
			t.Fatalf("application %d kind = %s, want %s", i, res.Applications[i].Kind, k)
		}
	}
	if !res.Remaining.IsZero() {
		t.Fatalf("remaining = %s", res.Remaining)
	}
	if !res.ChangeDue.Equal(d("9.00")) {
		t.Fatalf("change = %s, want 9.00", res.ChangeDue)
	}
	if !res.Paid.Equal(d("30.00")) {
		t.Fatalf("paid = %s", res.Paid)
	}
}

func TestPartialApprovalLeavesBalance(t *testing.T) {
	t.Parallel()

	debit := Tender{PaymentID: uuid.New(), Kind: enums.TenderDebit, Tendered: d("50.00"), Approved: d("35.00")}
	res := Allocate(d("50.00"), []Tender{debit})
	if !res.Remaining.Equal(d("15.00")) {
		t.Fatalf("remaining = %s, want 15.00", res.Remaining)
	}
	if !res.ChangeDue.IsZero() {
		t.Fatalf("card payments never produce change")
	}
}

func TestRemainingAndChangeNeverNegative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total   string
		tenders []Tender
		change  string
	}{
		{total: "10.00", tenders: []Tender{{Kind: enums.TenderCash, Tendered: d("10.00")}}, change: "0"},
		{total: "10.00", tenders: []Tender{{Kind: enums.TenderCredit, Approved: d("12.00")}}, change: "0"},
		{total: "0", tenders: []Tender{{Kind: enums.TenderCash, Tendered: d("1.00")}}, change: "1.00"},
		{total: "7.25", tenders: []Tender{{Kind: enums.TenderEBTCash, Approved: d("2.25")}, {Kind: enums.TenderCash, Tendered: d("5.00")}}, change: "0"},
	}
	for _, tt := range tests {
		res := Allocate(d(tt.total), tt.tenders)
		if res.Remaining.IsNegative() || res.ChangeDue.IsNegative() {
			t.Fatalf("total %s: negative result %+v", tt.total, res)
		}
		if !res.ChangeDue.Equal(d(tt.change)) {
			t.Fatalf("total %s: change = %s, want %s", tt.total, res.ChangeDue, tt.change)
		}
	}
}
