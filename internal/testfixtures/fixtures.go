package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/recurrence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

var (
	scheduleCounter uint64
	instanceCounter uint64
)

var referenceTime = time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the baseline timestamp truncated to its UTC day.
func ReferenceDate() time.Time {
	return routine.DateOf(referenceTime)
}

// --------------------------- Schedule fixtures ---------------------------

// ScheduleFixture represents a deterministic schedule definition that can be
// materialised for application or persistence tests.
type ScheduleFixture struct {
	ID              string
	OrganizationID  string
	StableID        string
	TemplateID      string
	StartDate       time.Time
	EndDate         time.Time
	Pattern         recurrence.Pattern
	RepeatDays      []time.Weekday
	IncludeHolidays bool
	StartTime       string
	AssignmentMode  routine.AssignmentMode
	DefaultID       string
	DefaultName     string
	PointsValue     int
	Enabled         bool
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns a deterministic schedule fixture with optional
// overrides. The default is an enabled daily schedule spanning one week.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	start := ReferenceDate()
	fixture := ScheduleFixture{
		ID:             fmt.Sprintf("schedule-%03d", idx),
		OrganizationID: "org-001",
		StableID:       "stable-001",
		TemplateID:     fmt.Sprintf("template-%03d", idx),
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 6),
		Pattern:        recurrence.PatternDaily,
		StartTime:      "07:00",
		AssignmentMode: routine.AssignUnassigned,
		PointsValue:    10,
		Enabled:        true,
		CreatedBy:      "member-001",
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithScheduleID overrides the schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ID = id
	}
}

// WithScheduleStable sets organization and stable identifiers together.
func WithScheduleStable(organizationID, stableID string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.OrganizationID = organizationID
		f.StableID = stableID
	}
}

// WithScheduleTemplate sets the routine template identifier.
func WithScheduleTemplate(templateID string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.TemplateID = templateID
	}
}

// WithScheduleRange sets the inclusive date range.
func WithScheduleRange(start, end time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.StartDate = routine.DateOf(start)
		f.EndDate = routine.DateOf(end)
	}
}

// WithSchedulePattern sets the repeat pattern and its day set.
func WithSchedulePattern(pattern recurrence.Pattern, days ...time.Weekday) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Pattern = pattern
		f.RepeatDays = append([]time.Weekday(nil), days...)
	}
}

// WithScheduleHolidays toggles holiday inclusion for custom patterns.
func WithScheduleHolidays(include bool) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.IncludeHolidays = include
	}
}

// WithScheduleStartTime sets the planned start time of day.
func WithScheduleStartTime(startTime string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.StartTime = startTime
	}
}

// WithScheduleAssignment sets the assignment mode.
func WithScheduleAssignment(mode routine.AssignmentMode) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.AssignmentMode = mode
	}
}

// WithScheduleDefaultAssignee sets the manual-mode default assignee.
func WithScheduleDefaultAssignee(id, name string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.AssignmentMode = routine.AssignManual
		f.DefaultID = id
		f.DefaultName = name
	}
}

// WithSchedulePoints sets the fairness points value.
func WithSchedulePoints(points int) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.PointsValue = points
	}
}

// WithScheduleEnabled toggles the enabled flag.
func WithScheduleEnabled(enabled bool) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Enabled = enabled
	}
}

// WithScheduleCreator sets the creating member.
func WithScheduleCreator(memberID string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.CreatedBy = memberID
	}
}

// WithScheduleTimestamps sets both created and updated timestamps.
func WithScheduleTimestamps(created, updated time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Input returns the fixture as an application.ScheduleInput.
func (f ScheduleFixture) Input() application.ScheduleInput {
	return application.ScheduleInput{
		OrganizationID:      f.OrganizationID,
		StableID:            f.StableID,
		TemplateID:          f.TemplateID,
		StartDate:           f.StartDate,
		EndDate:             f.EndDate,
		Pattern:             f.Pattern,
		RepeatDays:          append([]time.Weekday(nil), f.RepeatDays...),
		IncludeHolidays:     f.IncludeHolidays,
		StartTime:           f.StartTime,
		AssignmentMode:      f.AssignmentMode,
		DefaultAssigneeID:   f.DefaultID,
		DefaultAssigneeName: f.DefaultName,
		PointsValue:         f.PointsValue,
		Enabled:             f.Enabled,
	}
}

// Persistence returns the fixture as a persistence.RoutineSchedule value.
func (f ScheduleFixture) Persistence() persistence.RoutineSchedule {
	var defaultID, defaultName *string
	if f.AssignmentMode == routine.AssignManual && f.DefaultID != "" {
		id := f.DefaultID
		name := f.DefaultName
		defaultID = &id
		defaultName = &name
	}
	return persistence.RoutineSchedule{
		ID:                  f.ID,
		OrganizationID:      f.OrganizationID,
		StableID:            f.StableID,
		TemplateID:          f.TemplateID,
		StartDate:           f.StartDate,
		EndDate:             f.EndDate,
		Pattern:             string(f.Pattern),
		RepeatDays:          append([]time.Weekday(nil), f.RepeatDays...),
		IncludeHolidays:     f.IncludeHolidays,
		StartTime:           f.StartTime,
		AssignmentMode:      string(f.AssignmentMode),
		DefaultAssigneeID:   defaultID,
		DefaultAssigneeName: defaultName,
		PointsValue:         f.PointsValue,
		Enabled:             f.Enabled,
		CreatedBy:           f.CreatedBy,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

// --------------------------- Instance fixtures ---------------------------

// InstanceFixture represents a deterministic routine instance record.
type InstanceFixture struct {
	ID             string
	ScheduleID     string
	OrganizationID string
	StableID       string
	TemplateID     string
	ScheduledDate  time.Time
	StartTime      string
	AssigneeID     string
	AssigneeName   string
	Status         routine.Status
	StepsCompleted int
	StepsTotal     int
	PointsValue    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InstanceOption configures the generated instance fixture.
type InstanceOption func(*InstanceFixture)

// NewInstanceFixture returns a deterministic instance fixture with optional
// overrides. The default is an open scheduled instance for the reference day.
func NewInstanceFixture(opts ...InstanceOption) InstanceFixture {
	idx := atomic.AddUint64(&instanceCounter, 1)
	fixture := InstanceFixture{
		ID:             fmt.Sprintf("instance-%03d", idx),
		OrganizationID: "org-001",
		StableID:       "stable-001",
		TemplateID:     fmt.Sprintf("template-%03d", idx),
		ScheduledDate:  ReferenceDate(),
		StartTime:      "07:00",
		Status:         routine.StatusScheduled,
		StepsTotal:     3,
		PointsValue:    10,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithInstanceID overrides the instance ID.
func WithInstanceID(id string) InstanceOption {
	return func(f *InstanceFixture) {
		f.ID = id
	}
}

// WithInstanceSchedule sets the owning schedule reference.
func WithInstanceSchedule(scheduleID string) InstanceOption {
	return func(f *InstanceFixture) {
		f.ScheduleID = scheduleID
	}
}

// WithInstanceStable sets organization and stable identifiers together.
func WithInstanceStable(organizationID, stableID string) InstanceOption {
	return func(f *InstanceFixture) {
		f.OrganizationID = organizationID
		f.StableID = stableID
	}
}

// WithInstanceTemplate sets the routine template identifier.
func WithInstanceTemplate(templateID string) InstanceOption {
	return func(f *InstanceFixture) {
		f.TemplateID = templateID
	}
}

// WithInstanceDate sets the scheduled date.
func WithInstanceDate(date time.Time) InstanceOption {
	return func(f *InstanceFixture) {
		f.ScheduledDate = routine.DateOf(date)
	}
}

// WithInstanceAssignee sets the assigned member.
func WithInstanceAssignee(id, name string) InstanceOption {
	return func(f *InstanceFixture) {
		f.AssigneeID = id
		f.AssigneeName = name
	}
}

// WithInstanceStatus sets the lifecycle status.
func WithInstanceStatus(status routine.Status) InstanceOption {
	return func(f *InstanceFixture) {
		f.Status = status
	}
}

// WithInstanceSteps sets the completion progress counters.
func WithInstanceSteps(completed, total int) InstanceOption {
	return func(f *InstanceFixture) {
		f.StepsCompleted = completed
		f.StepsTotal = total
	}
}

// WithInstancePoints sets the snapshotted points value.
func WithInstancePoints(points int) InstanceOption {
	return func(f *InstanceFixture) {
		f.PointsValue = points
	}
}

// WithInstanceTimestamps sets both created and updated timestamps.
func WithInstanceTimestamps(created, updated time.Time) InstanceOption {
	return func(f *InstanceFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.RoutineInstance value.
func (f InstanceFixture) Persistence() persistence.RoutineInstance {
	var scheduleID *string
	if f.ScheduleID != "" {
		id := f.ScheduleID
		scheduleID = &id
	}
	var assigneeID, assigneeName *string
	if f.AssigneeID != "" {
		id := f.AssigneeID
		name := f.AssigneeName
		assigneeID = &id
		assigneeName = &name
	}
	return persistence.RoutineInstance{
		ID:             f.ID,
		ScheduleID:     scheduleID,
		OrganizationID: f.OrganizationID,
		StableID:       f.StableID,
		TemplateID:     f.TemplateID,
		ScheduledDate:  f.ScheduledDate,
		StartTime:      f.StartTime,
		AssigneeID:     assigneeID,
		AssigneeName:   assigneeName,
		Status:         f.Status,
		StepsCompleted: f.StepsCompleted,
		StepsTotal:     f.StepsTotal,
		PointsValue:    f.PointsValue,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}
