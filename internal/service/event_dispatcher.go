package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/pkg/events"
	"github.com/noah-isme/sma-docs-api/pkg/jobs"
)

const eventQueueName = "document-events"

// EventEmitter is the hook the review workflow notifies after each transition.
type EventEmitter interface {
	Emit(ctx context.Context, event models.DocumentEvent)
}

// EventDispatcher hands document events to a worker pool that publishes them.
// Delivery is best effort: failures are retried by the pool and then logged,
// never surfaced to the request that caused the event.
type EventDispatcher struct {
	publisher events.Publisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
}

// EventDispatcherConfig sizes the delivery pool.
type EventDispatcherConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewEventDispatcher wires a publisher behind a jobs queue. Call Start before Emit.
func NewEventDispatcher(publisher events.Publisher, metrics *MetricsService, logger *zap.Logger, cfg EventDispatcherConfig) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	d := &EventDispatcher{publisher: publisher, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue(eventQueueName, d.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the delivery workers.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains queued events and closes the publisher.
func (d *EventDispatcher) Stop() {
	d.queue.Stop()
	if err := d.publisher.Close(); err != nil {
		d.logger.Warn("failed to close event publisher", zap.Error(err))
	}
}

// Emit enqueues the event, filling id and timestamp when absent.
func (d *EventDispatcher) Emit(_ context.Context, event models.DocumentEvent) {
	if d == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{ID: event.ID, Type: string(event.Type), Payload: event}
	if err := d.queue.Enqueue(job); err != nil {
		d.metrics.RecordEventPublish(false)
		d.logger.Error("failed to enqueue document event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (d *EventDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.DocumentEvent)
	if !ok {
		d.logger.Error("unexpected event payload", zap.String("job_id", job.ID))
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to encode document event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	err = d.publisher.Publish(ctx, events.Message{
		Key:     event.StudentID,
		Type:    string(event.Type),
		Value:   payload,
		Created: event.OccurredAt,
	})
	d.metrics.RecordEventPublish(err == nil)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}
