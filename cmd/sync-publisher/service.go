package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db/models"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/metrics"
	"github.com/angelmondragon/lanecalc/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	backoffCeiling      = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

type pinger interface {
	Ping(context.Context) error
}

type pubSubClient interface {
	pinger
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	MarkTerminal(ctx context.Context, id uuid.UUID, cause error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.PublisherMetrics
	Clock      func() time.Time
}

// Service drains finalized transaction and refund events from the outbox to
// the sync topic. Delivery is at least once; consumers dedupe on event_id.
type Service struct {
	logg        *logger.Logger
	db          pinger
	repo        outboxRepository
	pubsub      pubSubClient
	routes      registryResolver
	metrics     *metrics.PublisherMetrics
	clock       func() time.Time
	batchSize   int
	maxAttempts int
	idle        time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	var err error
	for name, missing := range map[string]bool{
		"config":            p.Config == nil,
		"logger":            p.Logger == nil,
		"database client":   p.DB == nil,
		"pubsub client":     p.PubSub == nil,
		"outbox repository": p.Repository == nil,
		"event registry":    p.Registry == nil,
	} {
		if missing {
			err = multierr.Append(err, fmt.Errorf("%s is required", name))
		}
	}
	if err != nil {
		return nil, err
	}

	s := &Service{
		logg:        p.Logger,
		db:          p.DB,
		repo:        p.Repository,
		pubsub:      p.PubSub,
		routes:      p.Registry,
		metrics:     p.Metrics,
		clock:       p.Clock,
		batchSize:   positiveOr(p.Config.Outbox.BatchSize, fallbackBatchSize),
		maxAttempts: positiveOr(p.Config.Outbox.MaxAttempts, fallbackMaxAttempts),
		idle:        p.Config.Outbox.PollInterval(),
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is done. A full batch is followed immediately by the
// next one; an empty outbox waits one poll interval; an outbox error backs
// off exponentially up to backoffCeiling.
func (s *Service) Run(ctx context.Context) error {
	for name, dep := range map[string]pinger{"database": s.db, "pubsub": s.pubsub} {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", name), "sync publisher dependency unavailable", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := s.idle
	for ctx.Err() == nil {
		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "sync publisher batch error", err)
			wait = nextBackoff(wait, s.idle, backoffCeiling)
		case busy:
			wait = s.idle
			continue
		default:
			wait = s.idle
		}
		if err := pause(ctx, wait+rand.N(maxJitter)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "sync publisher context canceled")
	return ctx.Err()
}

// processBatch handles one fetch. It reports whether any row was handled;
// the error is reserved for failures to read or update the outbox.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	for _, event := range events {
		if err := s.dispatch(ctx, event); err != nil {
			return true, err
		}
	}
	return len(events) > 0, nil
}

// dispatch publishes one row and records the outcome on it.
func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) error {
	resolved, err := s.routes.Resolve(event)
	if err != nil {
		return s.park(ctx, event, s.logFields(event, nil), err)
	}
	fields := s.logFields(event, resolved)

	if err := s.publish(ctx, event, resolved); err != nil {
		s.metrics.IncFailed(string(event.EventType))
		attempt := event.AttemptCount + 1
		fields["attempt_count"] = attempt

		var permanent registry.NonRetryableError
		switch {
		case errors.As(err, &permanent):
			return s.park(ctx, event, fields, err)
		case attempt >= s.maxAttempts:
			fields["terminal_reason"] = "max_attempts"
			return s.park(ctx, event, fields, fmt.Errorf("gave up after %d attempts: %w", attempt, err))
		}

		s.logg.Warn(s.logg.WithFields(ctx, withError(fields, err)), "sync publish failed, will retry")
		if err := s.repo.MarkFailed(ctx, event.ID, err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		return nil
	}

	if err := s.repo.MarkPublished(ctx, event.ID, s.clock()); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	s.metrics.IncPublished(string(event.EventType))
	s.logg.Info(s.logg.WithFields(ctx, fields), "sync event published")
	return nil
}

// park marks a row that will not be retried.
func (s *Service) park(ctx context.Context, event models.OutboxEvent, fields map[string]any, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, withError(fields, cause)), "sync event will not be retried")
	if err := s.repo.MarkTerminal(ctx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	if resolved.Route.Topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic configured for %s", event.EventType))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := s.pubsub.Publish(ctx, resolved.Route.Topic, event.Payload, resolved.Attributes(event))
	return err
}

func (s *Service) logFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"batch_size":     s.batchSize,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	if resolved != nil {
		fields["topic"] = resolved.Route.Topic
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
		if o := resolved.Envelope.Origin; o != nil {
			fields[logger.FieldLaneID] = o.LaneID
		}
	}
	return fields
}

func withError(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// nextBackoff doubles current, starting from base, and caps it at limit.
func nextBackoff(current, base, limit time.Duration) time.Duration {
	return min(max(current, base)*2, limit)
}
