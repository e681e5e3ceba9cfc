// Package transactions persists finalized register transactions and queues
// them for sync to the store systems.
package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/lanecalc/pkg/db/models"
	dbtypes "github.com/angelmondragon/lanecalc/pkg/db/types"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/outbox"
	"github.com/angelmondragon/lanecalc/pkg/outbox/payloads"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	DB() *gorm.DB
}

// Store writes finalized snapshots and refunds together with their outbox
// events.
type Store struct {
	db     txRunner
	outbox *outbox.Service
	logg   *logger.Logger
}

// NewStore wires the store.
func NewStore(db txRunner, outboxSvc *outbox.Service, logg *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db client required")
	}
	if outboxSvc == nil {
		return nil, errors.New("outbox service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{db: db, outbox: outboxSvc, logg: logg}, nil
}

// SaveFinalized records a completed or voided snapshot. Saving an older
// version than the stored one fails with CONFLICT.
func (s *Store) SaveFinalized(ctx context.Context, t txn.Transaction) error {
	if !t.Status.IsFinal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed or voided transactions are persisted").WithDetails(map[string]any{
			"status": t.Status,
		})
	}
	eventType := enums.EventTransactionCompleted
	if t.Status == enums.TransactionStatusVoided {
		eventType = enums.EventTransactionVoided
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := upsertSnapshot(tx, t, sameOrNewer); err != nil {
			return err
		}
		_, err := s.outbox.Append(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   t.ID,
			Origin:        &outbox.Origin{LaneID: t.LaneID, ApproverID: t.VoidApproverID},
			Data: payloads.TransactionFinalizedEvent{
				TransactionID: t.ID,
				LaneID:        t.LaneID,
				Status:        t.Status,
				GrandTotal:    t.Totals().GrandTotal,
				Snapshot:      t,
			},
			OccurredAt: finalizedAt(t),
		})
		return err
	})
	if err != nil {
		return s.fail(ctx, t.ID, "persist finalized transaction", err)
	}
	s.logg.Info(s.ctx(ctx, t.ID), "finalized transaction persisted")
	return nil
}

// SaveRefund records refund and the updated original snapshot that carries
// it. The snapshot must be newer than the stored one: a refund computed from
// a copy that another return has since replaced fails with CONFLICT and
// nothing is written. Saving a refund that is already recorded is a no-op.
func (s *Store) SaveRefund(ctx context.Context, original txn.Transaction, refund txn.Refund) error {
	payload, err := json.Marshal(refund)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode refund")
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row := models.RefundRecord{
			ID:            refund.ID,
			TransactionID: original.ID,
			LaneID:        original.LaneID,
			Policy:        refund.Policy,
			Total:         refund.Total,
			Payload:       dbtypes.JSON(payload),
			CreatedAt:     refund.CreatedAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := upsertSnapshot(tx, original, newerOnly); err != nil {
			return err
		}
		_, err := s.outbox.Append(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundProcessed,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Origin:        &outbox.Origin{LaneID: original.LaneID},
			Data: payloads.RefundProcessedEvent{
				TransactionID: original.ID,
				LaneID:        original.LaneID,
				Refund:        refund,
			},
			OccurredAt: refund.CreatedAt,
		})
		return err
	})
	if err != nil {
		return s.fail(ctx, original.ID, "persist refund", err)
	}
	s.logg.Info(s.logg.WithField(s.ctx(ctx, original.ID), "refund_id", refund.ID.String()), "refund persisted")
	return nil
}

// Get loads the stored snapshot of a transaction.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (txn.Transaction, error) {
	var row models.TransactionRecord
	if err := s.db.DB().WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return txn.Transaction{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	var out txn.Transaction
	if err := json.Unmarshal(row.Snapshot, &out); err != nil {
		return txn.Transaction{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode transaction snapshot")
	}
	return out, nil
}

// Summary is the listing view of a stored transaction.
type Summary struct {
	ID          uuid.UUID               `json:"id"`
	LaneID      string                  `json:"laneId"`
	Status      enums.TransactionStatus `json:"status"`
	Version     int                     `json:"version"`
	GrandTotal  string                  `json:"grandTotal"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
}

// ListByLane returns the most recent finalized transactions of a lane.
func (s *Store) ListByLane(ctx context.Context, laneID string, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var rows []models.TransactionRecord
	err := s.db.DB().WithContext(ctx).
		Select("id", "lane_id", "status", "version", "grand_total", "completed_at", "created_at").
		Where("lane_id = ?", laneID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, Summary{
			ID:          row.ID,
			LaneID:      row.LaneID,
			Status:      row.Status,
			Version:     row.Version,
			GrandTotal:  row.GrandTotal.StringFixed(2),
			CompletedAt: row.CompletedAt,
		})
	}
	return out, nil
}

// Version guards for upsertSnapshot. sameOrNewer lets a retried save of the
// stored version through; newerOnly does not.
const (
	sameOrNewer = "transactions.version <= excluded.version"
	newerOnly   = "transactions.version < excluded.version"
)

func upsertSnapshot(tx *gorm.DB, t txn.Transaction, guard string) error {
	snapshot, err := json.Marshal(t)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transaction snapshot")
	}
	row := models.TransactionRecord{
		ID:          t.ID,
		LaneID:      t.LaneID,
		Status:      t.Status,
		Version:     t.Version,
		GrandTotal:  t.Totals().GrandTotal,
		Snapshot:    dbtypes.JSON(snapshot),
		OriginalID:  t.OriginalID,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "version", "grand_total", "snapshot", "completed_at", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: guard},
		}},
	}).Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "stored transaction changed since this snapshot was loaded").WithDetails(map[string]any{
			"transaction_id": t.ID.String(),
			"version":        t.Version,
		})
	}
	return nil
}

func finalizedAt(t txn.Transaction) time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.UpdatedAt
}

func (s *Store) ctx(ctx context.Context, id uuid.UUID) context.Context {
	return s.logg.WithTransactionID(ctx, id.String())
}

func (s *Store) fail(ctx context.Context, id uuid.UUID, msg string, err error) error {
	s.logg.Error(s.ctx(ctx, id), msg, err)
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", msg, id))
}
