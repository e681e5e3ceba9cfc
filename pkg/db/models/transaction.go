package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/lanecalc/pkg/db/types"
	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// TransactionRecord stores the latest finalized snapshot of a register
// transaction.
type TransactionRecord struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	LaneID      string                  `gorm:"column:lane_id;not null;index:idx_transactions_lane_created"`
	Status      enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	Version     int                     `gorm:"column:version;not null"`
	GrandTotal  decimal.Decimal         `gorm:"column:grand_total;type:numeric(12,2);not null"`
	Snapshot    dbtypes.JSON            `gorm:"column:snapshot;not null"`
	OriginalID  *uuid.UUID              `gorm:"column:original_id;type:uuid"`
	CompletedAt *time.Time              `gorm:"column:completed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;index:idx_transactions_lane_created"`
	UpdatedAt   time.Time               `gorm:"column:updated_at"`
}

func (TransactionRecord) TableName() string { return "transactions" }

// RefundRecord stores one processed return against a transaction.
type RefundRecord struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null;index"`
	LaneID        string             `gorm:"column:lane_id;not null"`
	Policy        enums.RefundPolicy `gorm:"column:policy;type:text;not null"`
	Total         decimal.Decimal    `gorm:"column:total;type:numeric(12,2);not null"`
	Payload       dbtypes.JSON       `gorm:"column:payload;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at"`
}

func (RefundRecord) TableName() string { return "refunds" }

func (r *RefundRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
