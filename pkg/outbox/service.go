package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/lanecalc/pkg/db/models"
	dbtypes "github.com/angelmondragon/lanecalc/pkg/db/types"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

// eventNamespace seeds the name-based event ids.
var eventNamespace = uuid.MustParse("6c1f0c1e-3f0e-5b7e-9a57-1a2d0c3b4e5f")

// DomainEvent is a fact about a finalized transaction or refund.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Origin        *Origin
	Data          any
	Version       int
	OccurredAt    time.Time
}

// EventID is stable for a given (type, aggregate) pair, so a snapshot saved
// twice yields one row and consumers can dedupe on it.
func (e DomainEvent) EventID() uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%s|%s|%s", e.EventType, e.AggregateType, e.AggregateID)))
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg}
}

// Append queues event inside tx so it commits or rolls back with the write
// that produced it. queued is false when the event was already present.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, event DomainEvent) (queued bool, err error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	if !event.EventType.IsValid() || !event.AggregateType.IsValid() {
		return false, fmt.Errorf("unsupported event %q on %q", event.EventType, event.AggregateType)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = 1
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return false, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	id := event.EventID()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    event.Version,
		EventID:    id.String(),
		OccurredAt: event.OccurredAt,
		Origin:     event.Origin,
		Data:       data,
	})
	if err != nil {
		return false, fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}

	queued, err = s.repo.InsertIgnore(tx, models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       dbtypes.JSON(payload),
	})
	if err != nil {
		return false, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     id.String(),
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
	})
	if queued {
		s.logg.Info(ctx, "outbox event queued")
	} else {
		s.logg.Debug(ctx, "outbox event already queued")
	}
	return queued, nil
}
