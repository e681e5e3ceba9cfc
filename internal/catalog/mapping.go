package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/db/models"
	dbtypes "github.com/angelmondragon/lanecalc/pkg/db/types"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

func productFromModel(row models.Product) txn.Product {
	p := txn.Product{
		ID:            row.ID,
		Barcode:       row.Barcode,
		Description:   row.Description,
		Category:      row.Category,
		Produce:       row.Produce,
		Weighed:       row.Weighed,
		OpenPrice:     row.OpenPrice,
		RetailPrice:   row.RetailPrice,
		FloorPrice:    row.FloorPrice,
		DepositRate:   row.DepositRate,
		SNAPEligible:  row.SNAPEligible,
		WICEligible:   row.WICEligible,
		AgeRestricted: row.AgeRestricted,
	}
	if row.WICCategory != nil {
		p.WICCategory = *row.WICCategory
	}
	if row.SalePrice.Valid {
		sale := &txn.SalePrice{Price: row.SalePrice.Decimal}
		if row.SaleStartsAt != nil {
			sale.StartsAt = row.SaleStartsAt.UTC()
		}
		if row.SaleEndsAt != nil {
			sale.EndsAt = row.SaleEndsAt.UTC()
		}
		p.Sale = sale
	}
	for _, c := range row.TaxComponents {
		p.TaxComponents = append(p.TaxComponents, txn.TaxComponent{TaxID: c.TaxID, Rate: c.Rate})
	}
	for _, t := range row.PriceTiers {
		p.BulkTiers = append(p.BulkTiers, txn.PriceTier{MinQty: t.MinQty, UnitPrice: t.UnitPrice})
	}
	for _, g := range row.GroupPrices {
		p.GroupPrices = append(p.GroupPrices, txn.GroupPrice{Group: g.CustomerGroup, Price: g.Price})
	}
	return p
}

func productToModel(p txn.Product) models.Product {
	row := models.Product{
		ID:            p.ID,
		Barcode:       p.Barcode,
		Description:   p.Description,
		Category:      p.Category,
		Produce:       p.Produce,
		Weighed:       p.Weighed,
		OpenPrice:     p.OpenPrice,
		RetailPrice:   p.RetailPrice,
		FloorPrice:    p.FloorPrice,
		DepositRate:   p.DepositRate,
		SNAPEligible:  p.SNAPEligible,
		WICEligible:   p.WICEligible,
		AgeRestricted: p.AgeRestricted,
		IsActive:      true,
	}
	if p.WICCategory != "" {
		wic := p.WICCategory
		row.WICCategory = &wic
	}
	if p.Sale != nil {
		row.SalePrice = decimal.NullDecimal{Decimal: p.Sale.Price, Valid: true}
		if !p.Sale.StartsAt.IsZero() {
			starts := p.Sale.StartsAt
			row.SaleStartsAt = &starts
		}
		if !p.Sale.EndsAt.IsZero() {
			ends := p.Sale.EndsAt
			row.SaleEndsAt = &ends
		}
	}
	for i, c := range p.TaxComponents {
		row.TaxComponents = append(row.TaxComponents, models.ProductTaxComponent{ProductID: p.ID, TaxID: c.TaxID, Rate: c.Rate, Position: i})
	}
	for _, t := range p.BulkTiers {
		row.PriceTiers = append(row.PriceTiers, models.ProductPriceTier{ProductID: p.ID, MinQty: t.MinQty, UnitPrice: t.UnitPrice})
	}
	for _, g := range p.GroupPrices {
		row.GroupPrices = append(row.GroupPrices, models.ProductGroupPrice{ProductID: p.ID, CustomerGroup: g.Group, Price: g.Price})
	}
	return row
}

func promotionFromModel(row models.Promotion) (txn.Promotion, error) {
	rule, err := txn.NewPromotionRule(row.Kind, row.SetSize, row.SetPrice.Decimal, row.Percent.Decimal)
	if err != nil {
		return txn.Promotion{}, err
	}
	p := txn.Promotion{
		ID:         row.ID,
		Name:       row.Name,
		Rule:       rule,
		ProductIDs: []string(row.ProductIDs),
		Categories: []string(row.Categories),
	}
	if row.StartsAt != nil {
		p.StartsAt = row.StartsAt.UTC()
	}
	if row.EndsAt != nil {
		p.EndsAt = row.EndsAt.UTC()
	}
	return p, nil
}

func promotionToModel(p txn.Promotion, rank int) (models.Promotion, error) {
	if p.Rule == nil {
		return models.Promotion{}, fmt.Errorf("promotion %s has no rule", p.ID)
	}
	row := models.Promotion{
		ID:         p.ID,
		Name:       p.Name,
		Kind:       p.Kind(),
		SetSize:    p.Rule.SetSize(),
		ProductIDs: dbtypes.StringArray(p.ProductIDs),
		Categories: dbtypes.StringArray(p.Categories),
		Rank:       rank,
		IsActive:   true,
	}
	switch rule := p.Rule.(type) {
	case txn.BundlePrice:
		row.SetPrice = decimal.NullDecimal{Decimal: rule.Price, Valid: true}
	case txn.MixAndMatch:
		row.SetPrice = decimal.NullDecimal{Decimal: rule.Price, Valid: true}
	case txn.MultiBuyPercent:
		row.Percent = decimal.NullDecimal{Decimal: rule.Percent, Valid: true}
	}
	if !p.StartsAt.IsZero() {
		starts := p.StartsAt
		row.StartsAt = &starts
	}
	if !p.EndsAt.IsZero() {
		ends := p.EndsAt
		row.EndsAt = &ends
	}
	return row, nil
}
