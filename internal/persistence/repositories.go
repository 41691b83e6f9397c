package persistence

import (
	"context"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// ScheduleRepository stores schedule definitions.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule RoutineSchedule) error
	GetSchedule(ctx context.Context, id string) (RoutineSchedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]RoutineSchedule, error)
}

// ScheduleFilter narrows schedule listings.
type ScheduleFilter struct {
	StableID    string
	EnabledOnly bool
}

// InstanceFilter narrows instance queries by stable, template, date range,
// and status set.
type InstanceFilter struct {
	StableID   string
	TemplateID string
	AssigneeID string
	From       *time.Time
	To         *time.Time
	Statuses   []routine.Status
}

// AssigneeChange carries the fields written by a conditional reassignment.
// Nil pointers clear the assignee.
type AssigneeChange struct {
	AssigneeID   *string
	AssigneeName *string
}

// InstanceRepository stores routine instances. Create collides on the
// caller-supplied identifier (ErrDuplicate); the conditional mutations
// re-check the expected prior status at write time and return ErrConflict
// when another writer got there first.
type InstanceRepository interface {
	CreateInstance(ctx context.Context, instance RoutineInstance) error
	GetInstance(ctx context.Context, id string) (RoutineInstance, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]RoutineInstance, error)

	// UpdateStatus moves the instance to next only if its persisted status
	// is one of expected. When claim is non-nil the assignee is written in
	// the same conditional update (used when a member starts an open
	// instance).
	UpdateStatus(ctx context.Context, id string, expected []routine.Status, next routine.Status, claim *AssigneeChange, at time.Time) (RoutineInstance, error)

	// UpdateAssignee rewrites the assignee only while the persisted status
	// is expected.
	UpdateAssignee(ctx context.Context, id string, expected routine.Status, change AssigneeChange, at time.Time) (RoutineInstance, error)

	// DeleteInstance removes the record only while its persisted status is
	// one of expected.
	DeleteInstance(ctx context.Context, id string, expected []routine.Status) error

	// CompletedPoints sums points_value over completed instances per member
	// within the stable, bounded below by since when non-nil.
	CompletedPoints(ctx context.Context, stableID string, memberIDs []string, since *time.Time) (map[string]int, error)
}
