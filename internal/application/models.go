package application

import (
	"context"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/recurrence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// PermissionManageSchedules is the permission-matrix action guarding schedule
// management and administrative lifecycle transitions.
const PermissionManageSchedules = "schedules:manage"

// Principal represents the acting member invoking a service method.
type Principal struct {
	ActorID string
}

// Member is a directory entry eligible for assignment.
type Member struct {
	ID          string
	DisplayName string
}

// PermissionChecker is the query contract of the external permission engine.
type PermissionChecker interface {
	HasPermission(ctx context.Context, actorID, organizationID, action string) (bool, error)
}

// MemberDirectory is the query contract of the external membership directory.
// Eligibility filtering (planning visibility, stable access) happens before
// candidates are returned.
type MemberDirectory interface {
	EligibleMembers(ctx context.Context, organizationID, stableID string) ([]Member, error)
}

// DependencyChecker reports execution artifacts (notes, completion records)
// recorded against an instance by the execution subsystem.
type DependencyChecker interface {
	HasExecutionRecords(ctx context.Context, instanceID string) (bool, error)
}

// ScheduleInput captures caller provided schedule definition fields. The
// conditional fields (repeat days, default assignee) arrive flat and are
// folded into the rule and policy variants during validation.
type ScheduleInput struct {
	OrganizationID      string
	StableID            string
	TemplateID          string
	StartDate           time.Time
	EndDate             time.Time
	Pattern             recurrence.Pattern
	RepeatDays          []time.Weekday
	IncludeHolidays     bool
	StartTime           string
	AssignmentMode      routine.AssignmentMode
	DefaultAssigneeID   string
	DefaultAssigneeName string
	PointsValue         int
	Enabled             bool
}

// CreateScheduleParams wraps the data required to create a schedule.
type CreateScheduleParams struct {
	Principal Principal
	Input     ScheduleInput
}

// PreviewScheduleParams wraps the data required to preview an assignment plan.
type PreviewScheduleParams struct {
	Principal Principal
	Input     ScheduleInput
}

// PlanSlotInput is one confirmed entry of a previewed plan handed back at
// publish time. An empty AssigneeID creates the instance open.
type PlanSlotInput struct {
	Date         time.Time
	AssigneeID   string
	AssigneeName string
}

// PublishScheduleParams wraps the data required to materialize a schedule.
// An empty Entries slice lets the service compute the plan itself, which is
// how non-auto modes skip the preview step.
type PublishScheduleParams struct {
	Principal  Principal
	ScheduleID string
	Entries    []PlanSlotInput
}

// PublishResult reports the outcome of an idempotent bulk materialization.
// Per-date failures are independent; partial success is reported, never
// rolled back.
type PublishResult struct {
	Created     int
	Skipped     int
	InstanceIDs []string
	Failures    []PublishFailure
}

// PublishFailure records a single date whose instance creation failed.
type PublishFailure struct {
	Date   time.Time
	Reason string
}

// AdHocInstanceInput captures the fields for a one-off instance created
// outside any schedule.
type AdHocInstanceInput struct {
	OrganizationID string
	StableID       string
	TemplateID     string
	ScheduledDate  time.Time
	StartTime      string
	AssigneeID     string
	AssigneeName   string
	PointsValue    int
	StepsTotal     int
}

// CreateInstanceParams wraps the data required for ad hoc instance creation.
type CreateInstanceParams struct {
	Principal Principal
	Input     AdHocInstanceInput
}

// ReassignParams wraps the data required to reassign an instance.
type ReassignParams struct {
	Principal    Principal
	InstanceID   string
	AssigneeID   string
	AssigneeName string
}

// ListInstancesParams narrows instance listings.
type ListInstancesParams struct {
	Principal Principal
	StableID  string
	From      *time.Time
	To        *time.Time
	Statuses  []routine.Status
}
