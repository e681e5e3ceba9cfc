// Package registry decides where each outbox row is published and checks that
// the stored payload still decodes before it leaves the lane.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db/models"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/outbox"
	"github.com/angelmondragon/lanecalc/pkg/outbox/payloads"
)

// Route is where one event type is published and how its data decodes.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (payloads.Subject, error)
}

// ResolvedEvent is an outbox row that is ready to publish.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  payloads.Subject
}

// Attributes are the message attributes consumers filter and dedupe on.
func (r *ResolvedEvent) Attributes(event models.OutboxEvent) map[string]string {
	attrs := map[string]string{
		"event_id":       r.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	if o := r.Envelope.Origin; o != nil && o.LaneID != "" {
		attrs["lane_id"] = o.LaneID
	}
	return attrs
}

// EventRegistry resolves outbox rows against the sync routes.
type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NonRetryableError marks a row that will never publish, however often it
// is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err so the dispatcher parks the row.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanentf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// NewEventRegistry routes every lane event to the store sync topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.SyncTopic == "" {
		return nil, errors.New("sync topic is required")
	}
	routes := []Route{
		{enums.EventTransactionCompleted, enums.AggregateTransaction, cfg.SyncTopic, decodeAs[payloads.TransactionFinalizedEvent]},
		{enums.EventTransactionVoided, enums.AggregateTransaction, cfg.SyncTopic, decodeAs[payloads.TransactionFinalizedEvent]},
		{enums.EventRefundProcessed, enums.AggregateRefund, cfg.SyncTopic, decodeAs[payloads.RefundProcessedEvent]},
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, route := range routes {
		reg.routes[route.EventType] = route
	}
	return reg, nil
}

// Resolve checks the row against its route and decodes the payload. Every
// error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, permanentf("unsupported event type %s", event.EventType)
	case route.AggregateType != event.AggregateType:
		return nil, permanentf("aggregate mismatch: expected %s got %s", route.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanentf("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanentf("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanentf("payload missing for %s", event.EventType)
	}

	payload, err := route.decode(envelope.Data)
	if err != nil {
		return nil, permanentf("decode %s payload: %w", event.EventType, err)
	}
	if id := payload.SubjectID(); id != event.AggregateID {
		return nil, permanentf("%s payload is for %s, row aggregate is %s", event.EventType, id, event.AggregateID)
	}
	return &ResolvedEvent{Route: route, Envelope: envelope, Payload: payload}, nil
}

func decodeAs[T any, P interface {
	*T
	payloads.Subject
}](data json.RawMessage) (payloads.Subject, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return P(&v), nil
}
