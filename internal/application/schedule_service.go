package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/fairness"
	"github.com/maxton76/stall-bokning-sub003/internal/holiday"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/recurrence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// maxScheduleSpan bounds a schedule definition's date range.
const maxScheduleSpanMonths = 12

// ScheduleService orchestrates schedule validation, plan preview, and
// idempotent publication.
type ScheduleService struct {
	schedules    persistence.ScheduleRepository
	instances    persistence.InstanceRepository
	members      MemberDirectory
	permissions  PermissionChecker
	holidays     holiday.Calendar
	locale       string
	lookbackDays int
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// ScheduleServiceConfig wires dependencies for schedule operations.
type ScheduleServiceConfig struct {
	Schedules   persistence.ScheduleRepository
	Instances   persistence.InstanceRepository
	Members     MemberDirectory
	Permissions PermissionChecker
	Holidays    holiday.Calendar
	Locale      string
	// LookbackDays bounds the fairness history window; zero means all-time.
	LookbackDays int
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(cfg ScheduleServiceConfig) *ScheduleService {
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	holidays := cfg.Holidays
	if holidays == nil {
		holidays = holiday.None{}
	}
	return &ScheduleService{
		schedules:    cfg.Schedules,
		instances:    cfg.Instances,
		members:      cfg.Members,
		permissions:  cfg.Permissions,
		holidays:     holidays,
		locale:       cfg.Locale,
		lookbackDays: cfg.LookbackDays,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(cfg.Logger),
	}
}

// CreateSchedule validates and persists a schedule definition. The definition
// must qualify at least one date; an empty expansion is a validation failure,
// not a silently empty schedule.
func (s *ScheduleService) CreateSchedule(ctx context.Context, params CreateScheduleParams) (persistence.RoutineSchedule, error) {
	logger := serviceLogger(ctx, s.logger, "schedule", "create")

	if err := s.requireManagePermission(ctx, params.Principal, params.Input.OrganizationID); err != nil {
		return persistence.RoutineSchedule{}, err
	}

	input := params.Input
	if vErr := validateScheduleInput(input, s.now()); vErr.HasErrors() {
		return persistence.RoutineSchedule{}, vErr
	}

	dates, err := s.expand(input)
	if err != nil {
		return persistence.RoutineSchedule{}, err
	}
	if len(dates) == 0 {
		vErr := &ValidationError{}
		vErr.add("repeat_pattern", "no qualifying dates in range")
		return persistence.RoutineSchedule{}, vErr
	}

	createdAt := s.now()
	schedule := persistence.RoutineSchedule{
		ID:              s.idGenerator(),
		OrganizationID:  input.OrganizationID,
		StableID:        input.StableID,
		TemplateID:      input.TemplateID,
		StartDate:       routine.DateOf(input.StartDate),
		EndDate:         routine.DateOf(input.EndDate),
		Pattern:         string(input.Pattern),
		RepeatDays:      input.RepeatDays,
		IncludeHolidays: input.IncludeHolidays,
		StartTime:       input.StartTime,
		AssignmentMode:  string(input.AssignmentMode),
		PointsValue:     input.PointsValue,
		Enabled:         input.Enabled,
		CreatedBy:       params.Principal.ActorID,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if input.AssignmentMode == routine.AssignManual {
		assigneeID := input.DefaultAssigneeID
		assigneeName := input.DefaultAssigneeName
		schedule.DefaultAssigneeID = &assigneeID
		schedule.DefaultAssigneeName = &assigneeName
	}

	if err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		return persistence.RoutineSchedule{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "schedule created", "schedule_id", schedule.ID, "dates", len(dates))
	return schedule, nil
}

// GetSchedule retrieves a schedule definition.
func (s *ScheduleService) GetSchedule(ctx context.Context, id string) (persistence.RoutineSchedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return persistence.RoutineSchedule{}, mapRepoError(err)
	}
	return schedule, nil
}

// ListSchedules lists schedule definitions for a stable.
func (s *ScheduleService) ListSchedules(ctx context.Context, stableID string, enabledOnly bool) ([]persistence.RoutineSchedule, error) {
	schedules, err := s.schedules.ListSchedules(ctx, persistence.ScheduleFilter{StableID: stableID, EnabledOnly: enabledOnly})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return schedules, nil
}

// PreviewSchedule expands the definition and produces the assignment plan a
// reviewer can override before publishing. Preview is only meaningful for
// auto mode; the other modes produce their fixed mapping.
func (s *ScheduleService) PreviewSchedule(ctx context.Context, params PreviewScheduleParams) (fairness.Plan, error) {
	input := params.Input
	if vErr := validateScheduleInput(input, s.now()); vErr.HasErrors() {
		return fairness.Plan{}, vErr
	}

	dates, err := s.expand(input)
	if err != nil {
		return fairness.Plan{}, err
	}
	if len(dates) == 0 {
		vErr := &ValidationError{}
		vErr.add("repeat_pattern", "no qualifying dates in range")
		return fairness.Plan{}, vErr
	}

	policy := policyFor(input)
	ranked, err := s.rankCandidates(ctx, input.OrganizationID, input.StableID, policy)
	if err != nil {
		return fairness.Plan{}, err
	}

	return fairness.BuildPlan(dates, policy, ranked, input.PointsValue), nil
}

// PublishSchedule materializes the confirmed plan into instance records.
// Identifiers derive from (template, stable, date), so republishing an
// already materialized date collides at the storage layer and is counted as
// skipped. Per-date failures are independent and reported, never rolled back.
func (s *ScheduleService) PublishSchedule(ctx context.Context, params PublishScheduleParams) (PublishResult, error) {
	logger := serviceLogger(ctx, s.logger, "schedule", "publish", "schedule_id", params.ScheduleID)

	schedule, err := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		return PublishResult{}, mapRepoError(err)
	}

	if err := s.requireManagePermission(ctx, params.Principal, schedule.OrganizationID); err != nil {
		return PublishResult{}, err
	}
	if !schedule.Enabled {
		vErr := &ValidationError{}
		vErr.add("enabled", "schedule is disabled")
		return PublishResult{}, vErr
	}

	slots, err := s.confirmedSlots(ctx, schedule, params.Entries)
	if err != nil {
		return PublishResult{}, err
	}

	result := PublishResult{}
	createdAt := s.now()
	for _, slot := range slots {
		instance := s.instanceForSlot(schedule, slot, createdAt)
		switch err := s.instances.CreateInstance(ctx, instance); {
		case err == nil:
			result.Created++
			result.InstanceIDs = append(result.InstanceIDs, instance.ID)
		case errors.Is(err, persistence.ErrDuplicate):
			result.Skipped++
		default:
			result.Failures = append(result.Failures, PublishFailure{
				Date:   slot.Date,
				Reason: err.Error(),
			})
		}
	}

	logger.InfoContext(ctx, "schedule published",
		"created", result.Created, "skipped", result.Skipped, "failed", len(result.Failures))
	return result, nil
}

// confirmedSlots resolves the plan to publish: the caller's confirmed entries
// when present, otherwise a freshly computed plan.
func (s *ScheduleService) confirmedSlots(ctx context.Context, schedule persistence.RoutineSchedule, entries []PlanSlotInput) ([]fairness.Slot, error) {
	dates, err := s.expandStored(schedule)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		vErr := &ValidationError{}
		vErr.add("repeat_pattern", "no qualifying dates in range")
		return nil, vErr
	}

	if len(entries) == 0 {
		policy := storedPolicy(schedule)
		ranked, err := s.rankCandidates(ctx, schedule.OrganizationID, schedule.StableID, policy)
		if err != nil {
			return nil, err
		}
		return fairness.BuildPlan(dates, policy, ranked, schedule.PointsValue).Slots, nil
	}

	qualifying := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		qualifying[routine.FormatDate(date)] = struct{}{}
	}

	slots := make([]fairness.Slot, 0, len(entries))
	for _, entry := range entries {
		date := routine.DateOf(entry.Date)
		if _, ok := qualifying[routine.FormatDate(date)]; !ok {
			vErr := &ValidationError{}
			vErr.add("plan", fmt.Sprintf("date %s does not qualify for this schedule", routine.FormatDate(date)))
			return nil, vErr
		}
		slot := fairness.Slot{Date: date}
		if entry.AssigneeID != "" {
			slot.Suggested = &fairness.Assignee{MemberID: entry.AssigneeID, DisplayName: entry.AssigneeName}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (s *ScheduleService) instanceForSlot(schedule persistence.RoutineSchedule, slot fairness.Slot, at time.Time) persistence.RoutineInstance {
	scheduleID := schedule.ID
	instance := persistence.RoutineInstance{
		ID:             routine.InstanceID(schedule.TemplateID, schedule.StableID, slot.Date),
		ScheduleID:     &scheduleID,
		OrganizationID: schedule.OrganizationID,
		StableID:       schedule.StableID,
		TemplateID:     schedule.TemplateID,
		ScheduledDate:  slot.Date,
		StartTime:      schedule.StartTime,
		Status:         routine.StatusScheduled,
		PointsValue:    schedule.PointsValue,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if assignee := slot.Assignee(); assignee != nil && assignee.MemberID != "" {
		id := assignee.MemberID
		name := assignee.DisplayName
		instance.AssigneeID = &id
		instance.AssigneeName = &name
	}
	return instance
}

// rankCandidates loads the eligible members and their completed workload for
// auto assignment. Non-auto policies need no candidate set.
func (s *ScheduleService) rankCandidates(ctx context.Context, organizationID, stableID string, policy routine.AssignmentPolicy) ([]fairness.MemberScore, error) {
	if policy.Mode() != routine.AssignAuto {
		return nil, nil
	}
	if s.members == nil {
		return nil, nil
	}

	members, err := s.members.EligibleMembers(ctx, organizationID, stableID)
	if err != nil {
		return nil, fmt.Errorf("load eligible members: %w", err)
	}

	candidates := make([]fairness.Candidate, 0, len(members))
	memberIDs := make([]string, 0, len(members))
	for _, member := range members {
		candidates = append(candidates, fairness.Candidate{MemberID: member.ID, DisplayName: member.DisplayName})
		memberIDs = append(memberIDs, member.ID)
	}

	var since *time.Time
	if s.lookbackDays > 0 {
		cutoff := routine.DateOf(s.now()).AddDate(0, 0, -s.lookbackDays)
		since = &cutoff
	}

	history, err := s.instances.CompletedPoints(ctx, stableID, memberIDs, since)
	if err != nil {
		return nil, fmt.Errorf("load fairness history: %w", err)
	}

	return fairness.Rank(candidates, history), nil
}

func (s *ScheduleService) expand(input ScheduleInput) ([]time.Time, error) {
	rule, err := recurrence.RuleFor(input.Pattern, input.RepeatDays, input.IncludeHolidays)
	if err != nil {
		return nil, err
	}
	return recurrence.Expand(input.StartDate, input.EndDate, rule, s.holidayFunc())
}

func (s *ScheduleService) expandStored(schedule persistence.RoutineSchedule) ([]time.Time, error) {
	rule, err := recurrence.RuleFor(recurrence.Pattern(schedule.Pattern), schedule.RepeatDays, schedule.IncludeHolidays)
	if err != nil {
		return nil, err
	}
	return recurrence.Expand(schedule.StartDate, schedule.EndDate, rule, s.holidayFunc())
}

func (s *ScheduleService) holidayFunc() recurrence.HolidayFunc {
	return func(date time.Time) bool {
		return s.holidays.IsHoliday(date, s.locale)
	}
}

func (s *ScheduleService) requireManagePermission(ctx context.Context, principal Principal, organizationID string) error {
	if s.permissions == nil {
		return nil
	}
	allowed, err := s.permissions.HasPermission(ctx, principal.ActorID, organizationID, PermissionManageSchedules)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func policyFor(input ScheduleInput) routine.AssignmentPolicy {
	switch input.AssignmentMode {
	case routine.AssignAuto:
		return routine.AutoAssign{}
	case routine.AssignManual:
		return routine.ManualAssign{AssigneeID: input.DefaultAssigneeID, AssigneeName: input.DefaultAssigneeName}
	case routine.AssignSelfBooked:
		return routine.SelfBooked{}
	default:
		return routine.Unassigned{}
	}
}

func storedPolicy(schedule persistence.RoutineSchedule) routine.AssignmentPolicy {
	switch routine.AssignmentMode(schedule.AssignmentMode) {
	case routine.AssignAuto:
		return routine.AutoAssign{}
	case routine.AssignManual:
		policy := routine.ManualAssign{}
		if schedule.DefaultAssigneeID != nil {
			policy.AssigneeID = *schedule.DefaultAssigneeID
		}
		if schedule.DefaultAssigneeName != nil {
			policy.AssigneeName = *schedule.DefaultAssigneeName
		}
		return policy
	case routine.AssignSelfBooked:
		return routine.SelfBooked{}
	default:
		return routine.Unassigned{}
	}
}

func validateScheduleInput(input ScheduleInput, _ time.Time) *ValidationError {
	vErr := &ValidationError{}

	if input.OrganizationID == "" {
		vErr.add("organization_id", "organization is required")
	}
	if input.StableID == "" {
		vErr.add("stable_id", "stable is required")
	}
	if input.TemplateID == "" {
		vErr.add("template_id", "template is required")
	}

	switch {
	case input.StartDate.IsZero():
		vErr.add("start_date", "start date is required")
	case input.EndDate.IsZero():
		vErr.add("end_date", "end date is required")
	case routine.DateOf(input.EndDate).Before(routine.DateOf(input.StartDate)):
		vErr.add("end_date", "end date must not precede start date")
	case routine.DateOf(input.EndDate).After(routine.DateOf(input.StartDate).AddDate(0, maxScheduleSpanMonths, 0)):
		vErr.add("end_date", "date range must not exceed 12 months")
	}

	if !recurrence.ValidPattern(input.Pattern) {
		vErr.add("repeat_pattern", "unknown repeat pattern")
	} else if requiresRepeatDays(input.Pattern) && len(input.RepeatDays) == 0 {
		vErr.add("repeat_days", "repeat days are required for this pattern")
	}
	for _, day := range input.RepeatDays {
		if day < time.Sunday || day > time.Saturday {
			vErr.add("repeat_days", "repeat days must be valid weekday numbers")
			break
		}
	}

	if !routine.ValidTimeOfDay(input.StartTime) {
		vErr.add("start_time", "start time must be HH:MM")
	}

	if !routine.ValidAssignmentMode(input.AssignmentMode) {
		vErr.add("assignment_mode", "unknown assignment mode")
	} else if input.AssignmentMode == routine.AssignManual {
		if input.DefaultAssigneeID == "" {
			vErr.add("default_assigned_to", "default assignee is required for manual assignment")
		}
	} else if input.DefaultAssigneeID != "" {
		vErr.add("default_assigned_to", "default assignee is only allowed for manual assignment")
	}

	if input.PointsValue < 0 {
		vErr.add("points_value", "points value must not be negative")
	}

	return vErr
}

func requiresRepeatDays(pattern recurrence.Pattern) bool {
	switch pattern {
	case recurrence.PatternCustom, recurrence.PatternWeekends, recurrence.PatternHolidays:
		return true
	default:
		return false
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate), errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	}
	return err
}
