package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/metrics"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

// messageWriter is satisfied by *kafka.Writer. A partial failure comes back
// as kafka.WriteErrors indexed like msgs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Writer     messageWriter
	Broker     func(context.Context) error
	Repository outboxRepository
	Metrics    *metrics.OutboxMetrics
}

// Service relays outbox_events rows to the domain event topic. Rows are
// locked for the duration of a batch so several publishers can run.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	writer       messageWriter
	broker       func(context.Context) error
	metrics      *metrics.OutboxMetrics
	topic        string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Writer == nil:
		return nil, errors.New("kafka writer is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Config.Kafka.Topic == "":
		return nil, errors.New("kafka topic is required")
	}
	s := &Service{
		logg:         p.Logger,
		db:           p.DB,
		repo:         p.Repository,
		writer:       p.Writer,
		broker:       p.Broker,
		metrics:      p.Metrics,
		topic:        p.Config.Kafka.Topic,
		batchSize:    p.Config.Outbox.BatchSize,
		maxAttempts:  p.Config.Outbox.MaxAttempts,
		pollInterval: time.Duration(p.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.broker == nil {
		s.broker = func(context.Context) error { return nil }
	}
	return s, nil
}

// Run polls until ctx ends. A full batch is followed immediately by the next
// one; errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.broker(ctx); err != nil {
		return fmt.Errorf("kafka ping failed: %w", err)
	}

	backoff := s.pollInterval
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		wait := s.pollInterval
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = backoff
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// pending pairs a fetched row with its decoded envelope.
type pending struct {
	event    models.OutboxEvent
	envelope outbox.PayloadEnvelope
}

// processBatch publishes one batch in a single transaction. Each row is
// marked published, failed or terminal on its own so one bad row does not
// hold back the others.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(events) == 0 {
			return err
		}
		processed = true
		started := time.Now()
		defer func() { s.metrics.ObserveBatch(time.Since(started)) }()

		batch := make([]pending, 0, len(events))
		for _, event := range events {
			envelope, err := outbox.DecodeEnvelope(event.Payload)
			if err != nil {
				if err := s.markTerminal(ctx, tx, event, fmt.Errorf("decode envelope: %w", err)); err != nil {
					return err
				}
				continue
			}
			batch = append(batch, pending{event: event, envelope: envelope})
		}
		if len(batch) == 0 {
			return nil
		}

		results := s.publish(ctx, batch)
		for i, item := range batch {
			if err := s.settle(ctx, tx, item, results[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// publish writes the batch in one call and returns a per-message error slice.
func (s *Service) publish(ctx context.Context, batch []pending) []error {
	msgs := make([]kafka.Message, len(batch))
	for i, item := range batch {
		msgs[i] = s.message(item)
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	results := make([]error, len(batch))
	err := s.writer.WriteMessages(publishCtx, msgs...)
	var perMessage kafka.WriteErrors
	switch {
	case err == nil:
	case errors.As(err, &perMessage) && len(perMessage) == len(batch):
		copy(results, perMessage)
	default:
		for i := range results {
			results[i] = err
		}
	}
	return results
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, item pending, publishErr error) error {
	event := item.event
	if publishErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Inc(metrics.OutboxPublished)
		s.logg.Debug(s.logg.WithFields(ctx, s.fields(item)), "outbox event published")
		return nil
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return s.markTerminal(ctx, tx, event, fmt.Errorf("max publish attempts reached: %w", publishErr))
	}

	fields := s.fields(item)
	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = publishErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	s.metrics.Inc(metrics.OutboxRetry)
	return nil
}

func (s *Service) markTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, cause error) error {
	fields := s.fields(pending{event: event})
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Inc(metrics.OutboxTerminal)
	return nil
}

// message keys by aggregate id so every event of one order lands on the
// same partition in order.
func (s *Service) message(item pending) kafka.Message {
	event := item.event
	return kafka.Message{
		Topic: s.topic,
		Key:   []byte(event.AggregateID.String()),
		Value: event.Payload,
		Time:  item.envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(item.envelope.EventID)},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
			{Key: "created_at", Value: []byte(event.CreatedAt.UTC().Format(time.RFC3339Nano))},
		},
	}
}

func (s *Service) fields(item pending) map[string]any {
	fields := map[string]any{
		"outbox_id":      item.event.ID.String(),
		"event_type":     item.event.EventType,
		"aggregate_type": item.event.AggregateType,
		"aggregate_id":   item.event.AggregateID.String(),
		"attempt_count":  item.event.AttemptCount,
		"topic":          s.topic,
	}
	if item.envelope.EventID != "" {
		fields["event_id"] = item.envelope.EventID
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}

// brokerPing succeeds once any broker accepts a connection.
func brokerPing(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		errs := make([]error, 0, len(brokers))
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err == nil {
				return conn.Close()
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return errors.New("no kafka brokers configured")
		}
		return errors.Join(errs...)
	}
}
