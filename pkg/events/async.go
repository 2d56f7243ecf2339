package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/pkg/jobs"
)

const publishTimeout = 5 * time.Second

// AsyncPublisher hands events to a worker queue that forwards them to the wrapped publisher.
type AsyncPublisher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAsyncPublisher builds the queue around next. Call Start before publishing.
func NewAsyncPublisher(next Publisher, cfg jobs.QueueConfig) *AsyncPublisher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return next.Publish(ctx, event)
	}
	return &AsyncPublisher{
		queue:  jobs.NewQueue("events", handler, cfg),
		logger: cfg.Logger,
	}
}

// Start launches the delivery workers.
func (p *AsyncPublisher) Start(ctx context.Context) { p.queue.Start(ctx) }

// Stop waits for in-flight deliveries.
func (p *AsyncPublisher) Stop() { p.queue.Stop() }

// Publish enqueues the event. A full or stopped queue drops it with a warning.
func (p *AsyncPublisher) Publish(_ context.Context, event Event) error {
	if err := p.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: event.Type, Payload: event}); err != nil {
		p.logger.Warn("event dropped", zap.String("type", event.Type), zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("enqueue %s: %w", event.Type, err)
	}
	return nil
}
