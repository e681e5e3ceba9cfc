package txn

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// RefundLine is the amount refunded for one returned line.
type RefundLine struct {
	LineID   uuid.UUID       `json:"lineId"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Deposit  decimal.Decimal `json:"deposit"`
	Tax      decimal.Decimal `json:"tax"`
	SNAP     decimal.Decimal `json:"snap"`
	WIC      decimal.Decimal `json:"wic"`
	Total    decimal.Decimal `json:"total"`
}

// RefundTender is money returned to one tender kind. PaymentID is nil for cash
// paid out under the cash refund policy.
type RefundTender struct {
	PaymentID *uuid.UUID       `json:"paymentId,omitempty"`
	Kind      enums.TenderKind `json:"kind"`
	Amount    decimal.Decimal  `json:"amount"`
}

// Refund records one processed return against a completed transaction.
type Refund struct {
	ID        uuid.UUID          `json:"id"`
	Policy    enums.RefundPolicy `json:"policy"`
	Lines     []RefundLine       `json:"lines"`
	Tenders   []RefundTender     `json:"tenders"`
	Total     decimal.Decimal    `json:"total"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Clone returns a deep copy of the refund.
func (r Refund) Clone() Refund {
	out := r
	out.Lines = slices.Clone(r.Lines)
	out.Tenders = make([]RefundTender, len(r.Tenders))
	for i, t := range r.Tenders {
		if t.PaymentID != nil {
			id := *t.PaymentID
			t.PaymentID = &id
		}
		out.Tenders[i] = t
	}
	return out
}
