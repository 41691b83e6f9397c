package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type collectingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *collectingSink) Record(_ context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *collectingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := &collectingSink{}
	dispatcher := NewDispatcher(sink, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, action := range []string{"cancel", "reassign", "cancel"} {
		if err := dispatcher.Record(context.Background(), Event{Action: action, InstanceID: "instance-1"}); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}
	dispatcher.Close()

	events := sink.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 events after Close, got %d", len(events))
	}
	if events[1].Action != "reassign" {
		t.Fatalf("events delivered out of order: %+v", events)
	}
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(&collectingSink{}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	dispatcher.Close()
	dispatcher.Close()
}

func TestDispatcher_SinkFailureDoesNotPropagate(t *testing.T) {
	t.Parallel()

	sink := &collectingSink{err: errors.New("store unavailable")}
	dispatcher := NewDispatcher(sink, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := dispatcher.Record(context.Background(), Event{Action: "cancel"}); err != nil {
		t.Fatalf("Record must swallow sink failures, got %v", err)
	}
	dispatcher.Close()
}

func TestLogRecorder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	recorder := LogRecorder{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	prior := "member-a"
	err := recorder.Record(context.Background(), Event{
		Action:        "reassign",
		InstanceID:    "instance-1",
		ActorID:       "manager-1",
		PriorAssignee: &prior,
		OccurredAt:    time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	line := buf.String()
	for _, want := range []string{`"action":"reassign"`, `"instance_id":"instance-1"`, `"prior_assignee":"member-a"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}
