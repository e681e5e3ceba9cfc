package models

import (
	"time"

	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/lanecalc/pkg/db/types"
)

// Promotion is a multi-unit offer. Rank orders evaluation; lower ranks claim
// units first.
type Promotion struct {
	ID         string              `gorm:"column:id;primaryKey"`
	Name       string              `gorm:"column:name;not null"`
	Kind       string              `gorm:"column:kind;not null"`
	SetSize    int                 `gorm:"column:set_size;not null"`
	SetPrice   decimal.NullDecimal `gorm:"column:set_price;type:numeric(12,2)"`
	Percent    decimal.NullDecimal `gorm:"column:percent;type:numeric(7,3)"`
	ProductIDs dbtypes.StringArray `gorm:"column:product_ids;not null"`
	Categories dbtypes.StringArray `gorm:"column:categories;not null"`
	Rank       int                 `gorm:"column:rank;not null;default:0"`
	StartsAt   *time.Time          `gorm:"column:starts_at"`
	EndsAt     *time.Time          `gorm:"column:ends_at"`
	IsActive   bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
