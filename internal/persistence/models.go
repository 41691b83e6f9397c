package persistence

import (
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// RoutineSchedule is the stored form of a schedule definition. The repeat
// days and default assignee are flat here; the domain variants are
// reconstructed at the application boundary.
type RoutineSchedule struct {
	ID                  string
	OrganizationID      string
	StableID            string
	TemplateID          string
	StartDate           time.Time
	EndDate             time.Time
	Pattern             string
	RepeatDays          []time.Weekday
	IncludeHolidays     bool
	StartTime           string
	AssignmentMode      string
	DefaultAssigneeID   *string
	DefaultAssigneeName *string
	PointsValue         int
	Enabled             bool
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RoutineInstance is one concrete dated occurrence of a routine. Instances
// created by a publisher carry a schedule back-reference; ad hoc instances
// do not.
type RoutineInstance struct {
	ID             string
	ScheduleID     *string
	OrganizationID string
	StableID       string
	TemplateID     string
	ScheduledDate  time.Time
	StartTime      string
	AssigneeID     *string
	AssigneeName   *string
	Status         routine.Status
	StepsCompleted int
	StepsTotal     int
	PointsValue    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
