package txn

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// Payment is a recorded tender. Approved may be below Requested on a partial
// authorization. Cash payments are approved for the full tendered amount.
type Payment struct {
	ID          uuid.UUID        `json:"id"`
	Kind        enums.TenderKind `json:"kind"`
	Requested   decimal.Decimal  `json:"requested"`
	Tendered    decimal.Decimal  `json:"tendered"`
	Approved    decimal.Decimal  `json:"approved"`
	Partial     bool             `json:"partial"`
	Reference   string           `json:"reference,omitempty"`
	WICCategory string           `json:"wicCategory,omitempty"`
	WICUnits    int              `json:"wicUnits,omitempty"`
	Refunded    decimal.Decimal  `json:"refunded"`
}

// Refundable is the approved amount not yet returned to this tender.
func (p Payment) Refundable() decimal.Decimal {
	left := p.Approved.Sub(p.Refunded)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// BenefitTender describes a benefit available to the allocator.
type BenefitTender struct {
	PaymentID   uuid.UUID        `json:"paymentId"`
	Kind        enums.TenderKind `json:"kind"`
	Available   decimal.Decimal  `json:"available"`
	Requested   decimal.Decimal  `json:"requested"`
	WICCategory string           `json:"wicCategory,omitempty"`
	WICUnits    int              `json:"wicUnits,omitempty"`
}
