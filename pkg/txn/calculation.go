package txn

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// TaxAmount is the tax collected for one tax ID.
type TaxAmount struct {
	TaxID  string          `json:"taxId"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// LineResult carries the derived figures for one active line.
type LineResult struct {
	LineID          uuid.UUID       `json:"lineId"`
	PriceUsed       decimal.Decimal `json:"priceUsed"`
	PriceSource     string          `json:"priceSource"`
	ExtendedPrice   decimal.Decimal `json:"extendedPrice"`
	PromoDiscount   decimal.Decimal `json:"promoDiscount"`
	PromotionIDs    []string        `json:"promotionIds,omitempty"`
	LineDiscount    decimal.Decimal `json:"lineDiscount"`
	InvoiceDiscount decimal.Decimal `json:"invoiceDiscount"`
	DepositTotal    decimal.Decimal `json:"depositTotal"`
	SubTotal        decimal.Decimal `json:"subTotal"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
	TaxPerUnit      decimal.Decimal `json:"taxPerUnit"`
	OriginalTax     decimal.Decimal `json:"originalTax"`
	TaxTotal        decimal.Decimal `json:"taxTotal"`
	TaxBreakdown    []TaxAmount     `json:"taxBreakdown,omitempty"`
	SNAPPaidAmount  decimal.Decimal `json:"snapPaidAmount"`
	SNAPPaidPercent decimal.Decimal `json:"snapPaidPercent"`
	WICPaidAmount   decimal.Decimal `json:"wicPaidAmount"`
	ExemptPercent   decimal.Decimal `json:"exemptPercent"`
	SavingsTotal    decimal.Decimal `json:"savingsTotal"`
}

// Totals are the transaction level figures.
type Totals struct {
	ItemCount    decimal.Decimal `json:"itemCount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxTotal     decimal.Decimal `json:"taxTotal"`
	DepositTotal decimal.Decimal `json:"depositTotal"`
	SavingsTotal decimal.Decimal `json:"savingsTotal"`
	Fee          decimal.Decimal `json:"fee"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
	Paid         decimal.Decimal `json:"paid"`
	Remaining    decimal.Decimal `json:"remaining"`
	ChangeDue    decimal.Decimal `json:"changeDue"`
	TaxByID      []TaxAmount     `json:"taxById,omitempty"`
}

// BenefitRemainder reports how much of a benefit tender was used.
type BenefitRemainder struct {
	PaymentID   uuid.UUID        `json:"paymentId"`
	Kind        enums.TenderKind `json:"kind"`
	WICCategory string           `json:"wicCategory,omitempty"`
	Available   decimal.Decimal  `json:"available"`
	Allocated   decimal.Decimal  `json:"allocated"`
	Unallocated decimal.Decimal  `json:"unallocated"`
	UnitsUnused int              `json:"unitsUnused,omitempty"`
}

// PaymentApplication is how one payment was applied against the balance.
type PaymentApplication struct {
	PaymentID       uuid.UUID        `json:"paymentId"`
	Kind            enums.TenderKind `json:"kind"`
	Applied         decimal.Decimal  `json:"applied"`
	ChangeDue       decimal.Decimal  `json:"changeDue"`
	RemainingBefore decimal.Decimal  `json:"remainingBefore"`
	RemainingAfter  decimal.Decimal  `json:"remainingAfter"`
}

// Calculation is the full pipeline output for a snapshot.
type Calculation struct {
	Lines    []LineResult         `json:"lines"`
	Totals   Totals               `json:"totals"`
	Benefits []BenefitRemainder   `json:"benefits,omitempty"`
	Payments []PaymentApplication `json:"payments,omitempty"`
}

// Line returns the result for a line ID.
func (c Calculation) Line(id uuid.UUID) (LineResult, bool) {
	for _, r := range c.Lines {
		if r.LineID == id {
			return r, true
		}
	}
	return LineResult{}, false
}
