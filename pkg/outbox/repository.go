package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/lanecalc/pkg/db/models"
)

const maxErrorLen = 1024

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertIgnore writes event unless a row with the same id already exists.
func (r *Repository) InsertIgnore(tx *gorm.DB, event models.OutboxEvent) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FetchUnpublished returns the oldest unpublished rows that have not
// exhausted maxAttempts. A zero maxAttempts disables the cap.
func (r *Repository) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	q := r.db.WithContext(ctx).Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	err := q.Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]any{"published_at": at})
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.update(ctx, id, map[string]any{
		"last_error":    errorText(cause, "unknown error"),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminal records cause and raises attempt_count to terminalAttempts so
// FetchUnpublished no longer returns the row.
func (r *Repository) MarkTerminal(ctx context.Context, id uuid.UUID, cause error, terminalAttempts int) error {
	return r.update(ctx, id, map[string]any{
		"last_error":    errorText(cause, "terminal failure"),
		"attempt_count": terminalAttempts,
	})
}

func (r *Repository) update(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values).Error
}

func errorText(cause error, fallback string) string {
	if cause == nil {
		return fallback
	}
	msg := cause.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}
