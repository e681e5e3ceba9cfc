package txn

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem holds the stored fields of a scanned line. Every monetary figure
// shown for the line is derived from these fields by the calculation pipeline
// and lives in LineResult.
type LineItem struct {
	ID               uuid.UUID        `json:"id"`
	ProductID        string           `json:"productId"`
	Barcode          string           `json:"barcode,omitempty"`
	Description      string           `json:"description"`
	Category         string           `json:"category,omitempty"`
	WICCategory      string           `json:"wicCategory,omitempty"`
	Produce          bool             `json:"produce"`
	Quantity         decimal.Decimal  `json:"quantity"`
	Weighed          bool             `json:"weighed"`
	RetailPrice      decimal.Decimal  `json:"retailPrice"`
	Sale             *SalePrice       `json:"sale,omitempty"`
	GroupPrices      []GroupPrice     `json:"groupPrices,omitempty"`
	BulkTiers        []PriceTier      `json:"bulkTiers,omitempty"`
	PromptedPrice    *decimal.Decimal `json:"promptedPrice,omitempty"`
	PriceOverride    Approval         `json:"priceOverride"`
	FloorPrice       decimal.Decimal  `json:"floorPrice"`
	TaxComponents    []TaxComponent   `json:"taxComponents,omitempty"`
	DepositRate      decimal.Decimal  `json:"depositRate"`
	SNAPEligible     bool             `json:"snapEligible"`
	WICEligible      bool             `json:"wicEligible"`
	AgeRestricted    bool             `json:"ageRestricted"`
	IsRemoved        bool             `json:"isRemoved"`
	Discount         *Discount        `json:"discount,omitempty"`
	ReturnedQuantity decimal.Decimal  `json:"returnedQuantity"`
}

// NewLineItem builds a line for product p with the given quantity.
func NewLineItem(p Product, qty decimal.Decimal) LineItem {
	line := LineItem{
		ID:            uuid.New(),
		ProductID:     p.ID,
		Barcode:       p.Barcode,
		Description:   p.Description,
		Category:      p.Category,
		WICCategory:   p.WICCategory,
		Produce:       p.Produce,
		Quantity:      qty,
		Weighed:       p.Weighed,
		RetailPrice:   p.RetailPrice,
		GroupPrices:   slices.Clone(p.GroupPrices),
		BulkTiers:     slices.Clone(p.BulkTiers),
		FloorPrice:    p.FloorPrice,
		TaxComponents: slices.Clone(p.TaxComponents),
		DepositRate:   p.DepositRate,
		SNAPEligible:  p.SNAPEligible,
		WICEligible:   p.WICEligible,
		AgeRestricted: p.AgeRestricted,
	}
	if p.Sale != nil {
		sale := *p.Sale
		line.Sale = &sale
	}
	return line
}

// Active reports whether the line counts toward totals.
func (l LineItem) Active() bool {
	return !l.IsRemoved && l.Quantity.IsPositive()
}

// Clone returns a deep copy of the line.
func (l LineItem) Clone() LineItem {
	out := l
	out.GroupPrices = slices.Clone(l.GroupPrices)
	out.BulkTiers = slices.Clone(l.BulkTiers)
	out.TaxComponents = slices.Clone(l.TaxComponents)
	if l.Sale != nil {
		sale := *l.Sale
		out.Sale = &sale
	}
	if l.PromptedPrice != nil {
		price := *l.PromptedPrice
		out.PromptedPrice = &price
	}
	if l.Discount != nil {
		d := *l.Discount
		out.Discount = &d
	}
	return out
}
