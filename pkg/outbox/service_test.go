package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lanecalc/pkg/db/models"
	"github.com/angelmondragon/lanecalc/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestAppendStoresEnvelope(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	aggregateID := uuid.New()
	occurred := time.Date(2026, 4, 18, 14, 30, 0, 0, time.UTC)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Append(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTransactionCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   aggregateID,
			Origin:        &Origin{LaneID: "lane-3"},
			Data:          map[string]string{"status": "completed"},
			OccurredAt:    occurred,
		})
		return err
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	rows, err := repo.FetchUnpublished(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 || envelope.Origin == nil || envelope.Origin.LaneID != "lane-3" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if !envelope.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected occurred_at %v", envelope.OccurredAt)
	}
	if string(envelope.Data) != `{"status":"completed"}` {
		t.Fatalf("unexpected data %s", envelope.Data)
	}
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Append(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTransactionVoided,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   uuid.New(),
			Data:          map[string]string{},
		}); err != nil {
			return err
		}
		return errors.New("write failed")
	})

	rows, err := repo.FetchUnpublished(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rollback to drop the event, got %d rows", len(rows))
	}
}

func TestAppendIgnoresRepeatedAggregateEvent(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	event := DomainEvent{
		EventType:     enums.EventTransactionCompleted,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
	}
	for i, want := range []bool{true, false} {
		queued, err := svc.Append(context.Background(), conn, event)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if queued != want {
			t.Fatalf("append %d: queued=%v want %v", i, queued, want)
		}
	}
	var rows []models.OutboxEvent
	conn.Find(&rows)
	if len(rows) != 1 || rows[0].ID != event.EventID() {
		t.Fatalf("expected one row keyed by the event id, got %+v", rows)
	}

	voided := event
	voided.EventType = enums.EventTransactionVoided
	if voided.EventID() == event.EventID() {
		t.Fatal("event ids must differ per event type")
	}
}

func TestAppendRejectsUnknownEventType(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), nil)
	_, err := svc.Append(context.Background(), conn, DomainEvent{
		EventType:     "price_changed",
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("expected unsupported event error")
	}
}

func TestMarkPublishedAndFailed(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Append(ctx, conn, DomainEvent{
			EventType:     enums.EventTransactionCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   uuid.New(),
			Data:          i,
		}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	rows, err := repo.FetchUnpublished(ctx, 10, 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d err=%v", len(rows), err)
	}

	if err := repo.MarkPublished(ctx, rows[0].ID, time.Now()); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := repo.MarkFailed(ctx, rows[1].ID, errors.New("unavailable")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err := repo.FetchUnpublished(ctx, 10, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(pending) != 1 || pending[0].AttemptCount != 1 || pending[0].LastError == nil || *pending[0].LastError != "unavailable" {
		t.Fatalf("unexpected pending rows %+v", pending)
	}

	capped, err := repo.FetchUnpublished(ctx, 10, 1)
	if err != nil {
		t.Fatalf("fetch capped: %v", err)
	}
	if len(capped) != 0 {
		t.Fatalf("expected exhausted row to be skipped, got %d", len(capped))
	}
}

func TestAppendRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	if _, err := svc.Append(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestMarkTerminalRemovesRowFromFetch(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Append(ctx, conn, DomainEvent{
		EventType:     enums.EventTransactionVoided,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.New(),
		Data:          map[string]string{"status": "voided"},
	}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	rows, err := repo.FetchUnpublished(ctx, 10, 5)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d err=%v", len(rows), err)
	}

	if err := repo.MarkTerminal(ctx, rows[0].ID, errors.New("unsupported"), 5); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}
	left, err := repo.FetchUnpublished(ctx, 10, 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("terminal row should not be fetched again, got %d", len(left))
	}
}
