package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item sold at the lane. ID is the store SKU.
type Product struct {
	ID            string                `gorm:"column:id;primaryKey"`
	Barcode       string                `gorm:"column:barcode;not null;uniqueIndex:ux_products_barcode"`
	Description   string                `gorm:"column:description;not null"`
	Category      string                `gorm:"column:category;not null;index:idx_products_category"`
	WICCategory   *string               `gorm:"column:wic_category"`
	Produce       bool                  `gorm:"column:produce;not null;default:false"`
	Weighed       bool                  `gorm:"column:weighed;not null;default:false"`
	OpenPrice     bool                  `gorm:"column:open_price;not null;default:false"`
	RetailPrice   decimal.Decimal       `gorm:"column:retail_price;type:numeric(12,2);not null"`
	SalePrice     decimal.NullDecimal   `gorm:"column:sale_price;type:numeric(12,2)"`
	SaleStartsAt  *time.Time            `gorm:"column:sale_starts_at"`
	SaleEndsAt    *time.Time            `gorm:"column:sale_ends_at"`
	FloorPrice    decimal.Decimal       `gorm:"column:floor_price;type:numeric(12,2);not null;default:0"`
	DepositRate   decimal.Decimal       `gorm:"column:deposit_rate;type:numeric(12,2);not null;default:0"`
	SNAPEligible  bool                  `gorm:"column:snap_eligible;not null;default:false"`
	WICEligible   bool                  `gorm:"column:wic_eligible;not null;default:false"`
	AgeRestricted bool                  `gorm:"column:age_restricted;not null;default:false"`
	IsActive      bool                  `gorm:"column:is_active;not null;default:true"`
	TaxComponents []ProductTaxComponent `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	PriceTiers    []ProductPriceTier    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	GroupPrices   []ProductGroupPrice   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductTaxComponent is one tax levied on a product. Rate is a percentage.
type ProductTaxComponent struct {
	ProductID string          `gorm:"column:product_id;primaryKey"`
	TaxID     string          `gorm:"column:tax_id;primaryKey"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(7,3);not null"`
	Position  int             `gorm:"column:position;not null;default:0"`
}

// ProductPriceTier captures bulk pricing per product.
type ProductPriceTier struct {
	ProductID string          `gorm:"column:product_id;primaryKey"`
	MinQty    decimal.Decimal `gorm:"column:min_qty;type:numeric(10,3);primaryKey"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

// ProductGroupPrice is a customer group price for a product.
type ProductGroupPrice struct {
	ProductID     string          `gorm:"column:product_id;primaryKey"`
	CustomerGroup string          `gorm:"column:customer_group;primaryKey"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
}
