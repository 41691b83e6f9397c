package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected %v from NowFunc, got %v", clock.Now(), got)
	}

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected updated time %v, got %v", clock.Now(), got)
	}
}

func TestIDGeneratorSequence(t *testing.T) {
	gen := NewIDGenerator("schedule")

	if got := gen.Next(); got != "schedule-1" {
		t.Fatalf("first ID = %q, want schedule-1", got)
	}
	if got := gen.Next(); got != "schedule-2" {
		t.Fatalf("second ID = %q, want schedule-2", got)
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	gen := NewIDGenerator("")
	if got := gen.Next(); got != "id-1" {
		t.Fatalf("ID = %q, want id-1", got)
	}
}

func TestIDGeneratorNextFunc(t *testing.T) {
	gen := NewIDGenerator("instance")
	nextFn := gen.NextFunc()

	if got := nextFn(); got != "instance-1" {
		t.Fatalf("ID = %q, want instance-1", got)
	}
	if got := gen.Next(); got != "instance-2" {
		t.Fatalf("ID = %q, want instance-2", got)
	}
}
