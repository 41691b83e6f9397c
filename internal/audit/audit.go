// Package audit provides a best-effort, append-only event recorder. Audit
// writes are never allowed to fail the mutation that produced them: the
// dispatcher hands events to a background worker and drops them with a log
// line when the sink fails or the buffer is full.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event is one audit record for a lifecycle mutation.
type Event struct {
	Action         string
	InstanceID     string
	ActorID        string
	PriorAssignee  *string
	NewAssignee    *string
	OccurredAt     time.Time
	OrganizationID string
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// LogRecorder writes audit events as structured log lines. It stands in for
// the external audit store in deployments without one.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record logs the event.
func (r LogRecorder) Record(ctx context.Context, event Event) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit event",
		"action", event.Action,
		"instance_id", event.InstanceID,
		"actor_id", event.ActorID,
		"prior_assignee", deref(event.PriorAssignee),
		"new_assignee", deref(event.NewAssignee),
		"occurred_at", event.OccurredAt,
	)
	return nil
}

// Dispatcher decouples audit recording from the caller's critical path. The
// enqueue never blocks; delivery happens on a single background worker.
type Dispatcher struct {
	sink   Recorder
	events chan Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts the background worker. A buffer of zero defaults to 64.
func NewDispatcher(sink Recorder, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sink:   sink,
		events: make(chan Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Record enqueues the event. Failures are logged and swallowed; the caller's
// transition must not depend on audit delivery.
func (d *Dispatcher) Record(_ context.Context, event Event) error {
	select {
	case d.events <- event:
	default:
		d.logger.Warn("audit buffer full, dropping event",
			"action", event.Action, "instance_id", event.InstanceID)
	}
	return nil
}

// Close stops the worker after draining buffered events.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.events)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		// The sink owns its own timeouts; the request context is gone by now.
		if err := d.sink.Record(context.Background(), event); err != nil {
			d.logger.Warn("audit sink rejected event",
				"action", event.Action, "instance_id", event.InstanceID, "error", err)
		}
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
