package txn

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// Transaction is an immutable snapshot. Operations never modify a snapshot in
// place; they return a new one built from Clone.
type Transaction struct {
	ID              uuid.UUID               `json:"id"`
	LaneID          string                  `json:"laneId"`
	CustomerGroup   string                  `json:"customerGroup,omitempty"`
	Status          enums.TransactionStatus `json:"status"`
	Lines           []LineItem              `json:"lines"`
	InvoiceDiscount *Discount               `json:"invoiceDiscount,omitempty"`
	Payments        []Payment               `json:"payments"`
	Refunds         []Refund                `json:"refunds,omitempty"`
	Calculation     Calculation             `json:"calculation"`
	Version         int                     `json:"version"`
	VoidApproverID  string                  `json:"voidApproverId,omitempty"`
	OriginalID      *uuid.UUID              `json:"originalId,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
	CompletedAt     *time.Time              `json:"completedAt,omitempty"`
}

// New returns an empty in-progress transaction for a lane.
func New(laneID string, now time.Time) Transaction {
	return Transaction{
		ID:        uuid.New(),
		LaneID:    laneID,
		Status:    enums.TransactionStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Totals is shorthand for Calculation.Totals.
func (t Transaction) Totals() Totals {
	return t.Calculation.Totals
}

// IsEmpty reports whether no active line has been scanned.
func (t Transaction) IsEmpty() bool {
	for _, l := range t.Lines {
		if l.Active() {
			return false
		}
	}
	return true
}

// LineIndex returns the index of the line with the given ID, or -1.
func (t Transaction) LineIndex(id uuid.UUID) int {
	return slices.IndexFunc(t.Lines, func(l LineItem) bool { return l.ID == id })
}

// ApprovedPayments sums approved payment amounts.
func (t Transaction) ApprovedPayments() decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.Payments {
		total = total.Add(p.Approved)
	}
	return total
}

// Clone returns a deep copy of the snapshot.
func (t Transaction) Clone() Transaction {
	out := t
	out.Lines = make([]LineItem, len(t.Lines))
	for i, l := range t.Lines {
		out.Lines[i] = l.Clone()
	}
	if t.InvoiceDiscount != nil {
		d := *t.InvoiceDiscount
		out.InvoiceDiscount = &d
	}
	out.Payments = slices.Clone(t.Payments)
	out.Refunds = make([]Refund, len(t.Refunds))
	for i, r := range t.Refunds {
		out.Refunds[i] = r.Clone()
	}
	out.Calculation = t.Calculation.Clone()
	if t.OriginalID != nil {
		id := *t.OriginalID
		out.OriginalID = &id
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// Clone returns a deep copy of the calculation.
func (c Calculation) Clone() Calculation {
	out := c
	out.Lines = make([]LineResult, len(c.Lines))
	for i, r := range c.Lines {
		r.PromotionIDs = slices.Clone(r.PromotionIDs)
		r.TaxBreakdown = slices.Clone(r.TaxBreakdown)
		out.Lines[i] = r
	}
	out.Totals.TaxByID = slices.Clone(c.Totals.TaxByID)
	out.Benefits = slices.Clone(c.Benefits)
	out.Payments = slices.Clone(c.Payments)
	return out
}
