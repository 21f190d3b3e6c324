package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const jobTypeTimetableGenerated = "timetable.generated"

// EventDispatcher hands domain events to a background queue that publishes
// them to the broker with retries.
type EventDispatcher struct {
	queue     *jobs.Queue
	publisher events.Publisher
	topic     string
	timeout   time.Duration
	logger    *zap.Logger
}

// EventDispatcherConfig configures the dispatcher.
type EventDispatcherConfig struct {
	Queue      string
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// NewEventDispatcher builds a dispatcher around publisher. Call Start before
// dispatching and Stop on shutdown.
func NewEventDispatcher(publisher events.Publisher, cfg EventDispatcherConfig, logger *zap.Logger) *EventDispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Queue == "" {
		cfg.Queue = "timetable.generated"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	d := &EventDispatcher{publisher: publisher, topic: cfg.Queue, timeout: cfg.Timeout, logger: logger}
	d.queue = jobs.NewQueue("events", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the publishing workers.
func (d *EventDispatcher) Start(ctx context.Context) {
	if d == nil {
		return
	}
	d.queue.Start(ctx)
}

// Stop drains in-flight publishes.
func (d *EventDispatcher) Stop() {
	if d == nil {
		return
	}
	d.queue.Stop()
}

// TimetableGenerated enqueues the event for a committed run. Failures are
// logged and never surface to the caller.
func (d *EventDispatcher) TimetableGenerated(evt events.TimetableGenerated) {
	if d == nil {
		return
	}
	if err := d.queue.Enqueue(jobs.Job{Type: jobTypeTimetableGenerated, Payload: evt}); err != nil {
		d.logger.Warn("drop timetable event", zap.String("run_id", evt.RunID), zap.Error(err))
	}
}

func (d *EventDispatcher) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeTimetableGenerated:
		publishCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.publisher.Publish(publishCtx, d.topic, job.Payload)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
