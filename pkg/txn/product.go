package txn

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxComponent is one tax applied to a line. Rate is a percentage.
type TaxComponent struct {
	TaxID string          `json:"taxId"`
	Rate  decimal.Decimal `json:"rate"`
}

// PriceTier is a bulk price that applies once the line quantity reaches MinQty.
type PriceTier struct {
	MinQty    decimal.Decimal `json:"minQty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// GroupPrice is a customer-group specific unit price.
type GroupPrice struct {
	Group string          `json:"group"`
	Price decimal.Decimal `json:"price"`
}

// SalePrice is a temporary price with an optional active window. Zero bounds
// are open.
type SalePrice struct {
	Price    decimal.Decimal `json:"price"`
	StartsAt time.Time       `json:"startsAt,omitempty"`
	EndsAt   time.Time       `json:"endsAt,omitempty"`
}

// ActiveAt reports whether the sale covers t.
func (s SalePrice) ActiveAt(t time.Time) bool {
	if !s.StartsAt.IsZero() && t.Before(s.StartsAt) {
		return false
	}
	if !s.EndsAt.IsZero() && !t.Before(s.EndsAt) {
		return false
	}
	return true
}

// Product is the catalog view of an item as returned by the catalog provider.
type Product struct {
	ID            string          `json:"id"`
	Barcode       string          `json:"barcode"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	WICCategory   string          `json:"wicCategory,omitempty"`
	Produce       bool            `json:"produce"`
	Weighed       bool            `json:"weighed"`
	OpenPrice     bool            `json:"openPrice"`
	RetailPrice   decimal.Decimal `json:"retailPrice"`
	Sale          *SalePrice      `json:"sale,omitempty"`
	GroupPrices   []GroupPrice    `json:"groupPrices,omitempty"`
	BulkTiers     []PriceTier     `json:"bulkTiers,omitempty"`
	FloorPrice    decimal.Decimal `json:"floorPrice"`
	TaxComponents []TaxComponent  `json:"taxComponents,omitempty"`
	DepositRate   decimal.Decimal `json:"depositRate"`
	SNAPEligible  bool            `json:"snapEligible"`
	WICEligible   bool            `json:"wicEligible"`
	AgeRestricted bool            `json:"ageRestricted"`
}

// TaxRate returns the sum of the component rates.
func TaxRate(components []TaxComponent) decimal.Decimal {
	total := decimal.Zero
	for _, c := range components {
		total = total.Add(c.Rate)
	}
	return total
}
