package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/audit"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// InstanceService drives each routine instance through its guarded state
// machine. Every mutating transition re-validates the precondition status at
// write time through a conditional repository write; a losing concurrent
// caller receives ErrConflict and must re-read before retrying.
type InstanceService struct {
	instances    persistence.InstanceRepository
	members      MemberDirectory
	permissions  PermissionChecker
	dependencies DependencyChecker
	auditor      audit.Recorder
	now          func() time.Time
	logger       *slog.Logger
}

// InstanceServiceConfig wires dependencies for lifecycle operations.
type InstanceServiceConfig struct {
	Instances    persistence.InstanceRepository
	Members      MemberDirectory
	Permissions  PermissionChecker
	Dependencies DependencyChecker
	Auditor      audit.Recorder
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewInstanceService constructs an InstanceService.
func NewInstanceService(cfg InstanceServiceConfig) *InstanceService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &InstanceService{
		instances:    cfg.Instances,
		members:      cfg.Members,
		permissions:  cfg.Permissions,
		dependencies: cfg.Dependencies,
		auditor:      cfg.Auditor,
		now:          now,
		logger:       defaultLogger(cfg.Logger),
	}
}

// CreateAdHocInstance materializes a single one-off instance outside any
// schedule. The deterministic identifier still applies, so a duplicate for
// the same (template, stable, date) is rejected with ErrConflict.
func (s *InstanceService) CreateAdHocInstance(ctx context.Context, params CreateInstanceParams) (persistence.RoutineInstance, error) {
	if err := s.requireManagePermission(ctx, params.Principal, params.Input.OrganizationID); err != nil {
		return persistence.RoutineInstance{}, err
	}

	input := params.Input
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
	if input.ScheduledDate.IsZero() {
		vErr.add("scheduled_date", "scheduled date is required")
	}
	if !routine.ValidTimeOfDay(input.StartTime) {
		vErr.add("start_time", "start time must be HH:MM")
	}
	if vErr.HasErrors() {
		return persistence.RoutineInstance{}, vErr
	}

	createdAt := s.now()
	date := routine.DateOf(input.ScheduledDate)
	instance := persistence.RoutineInstance{
		ID:             routine.InstanceID(input.TemplateID, input.StableID, date),
		OrganizationID: input.OrganizationID,
		StableID:       input.StableID,
		TemplateID:     input.TemplateID,
		ScheduledDate:  date,
		StartTime:      input.StartTime,
		Status:         routine.StatusScheduled,
		StepsTotal:     input.StepsTotal,
		PointsValue:    input.PointsValue,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if input.AssigneeID != "" {
		assigneeID := input.AssigneeID
		assigneeName := input.AssigneeName
		instance.AssigneeID = &assigneeID
		instance.AssigneeName = &assigneeName
	}

	if err := s.instances.CreateInstance(ctx, instance); err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}
	return instance, nil
}

// GetInstance retrieves an instance by ID.
func (s *InstanceService) GetInstance(ctx context.Context, id string) (persistence.RoutineInstance, error) {
	instance, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}
	return instance, nil
}

// ListInstances lists instances for a stable and date range.
func (s *InstanceService) ListInstances(ctx context.Context, params ListInstancesParams) ([]persistence.RoutineInstance, error) {
	instances, err := s.instances.ListInstances(ctx, persistence.InstanceFilter{
		StableID: params.StableID,
		From:     params.From,
		To:       params.To,
		Statuses: params.Statuses,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return instances, nil
}

// Start moves a scheduled instance to started. The current assignee may
// start their own instance; an open (unassigned or self-booked) instance may
// be started by any eligible member, who claims it in the same conditional
// write. Start is not gated by the administrative permission matrix.
func (s *InstanceService) Start(ctx context.Context, principal Principal, instanceID string) (persistence.RoutineInstance, error) {
	instance, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}

	var claim *persistence.AssigneeChange
	if instance.AssigneeID != nil {
		if *instance.AssigneeID != principal.ActorID {
			return persistence.RoutineInstance{}, ErrForbidden
		}
	} else {
		member, err := s.eligibleMember(ctx, instance.OrganizationID, instance.StableID, principal.ActorID)
		if err != nil {
			return persistence.RoutineInstance{}, err
		}
		claim = &persistence.AssigneeChange{AssigneeID: &member.ID, AssigneeName: &member.DisplayName}
	}

	next, _ := routine.NextStatus(routine.ActionStart, routine.StatusScheduled)
	updated, err := s.instances.UpdateStatus(ctx, instanceID,
		routine.TransitionSources(routine.ActionStart), next, claim, s.now())
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}
	return updated, nil
}

// Complete moves a started or in-progress instance to completed, after which
// it feeds fairness history permanently. Permitted for the current assignee
// or a schedule manager.
func (s *InstanceService) Complete(ctx context.Context, principal Principal, instanceID string) (persistence.RoutineInstance, error) {
	instance, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}

	if err := s.requireAssigneeOrManager(ctx, principal, instance); err != nil {
		return persistence.RoutineInstance{}, err
	}

	updated, err := s.instances.UpdateStatus(ctx, instanceID,
		routine.TransitionSources(routine.ActionComplete), routine.StatusCompleted, nil, s.now())
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}
	return updated, nil
}

// Cancel terminates an instance that has not completed. Permitted for the
// current assignee or a schedule manager. Cancellation is terminal; it can
// only be superseded by a newly created instance. The assignee is left
// untouched.
func (s *InstanceService) Cancel(ctx context.Context, principal Principal, instanceID string) (persistence.RoutineInstance, error) {
	instance, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}

	if err := s.requireAssigneeOrManager(ctx, principal, instance); err != nil {
		return persistence.RoutineInstance{}, err
	}

	updated, err := s.instances.UpdateStatus(ctx, instanceID,
		routine.TransitionSources(routine.ActionCancel), routine.StatusCancelled, nil, s.now())
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}

	s.recordAudit(ctx, audit.Event{
		Action:         string(routine.ActionCancel),
		InstanceID:     instanceID,
		ActorID:        principal.ActorID,
		PriorAssignee:  instance.AssigneeID,
		OccurredAt:     s.now(),
		OrganizationID: instance.OrganizationID,
	})
	return updated, nil
}

// Reassign rewrites the assignee of a still-scheduled instance. Requires the
// manage-schedules permission; the status precondition is re-validated by the
// conditional write. An empty assignee ID clears the assignment.
func (s *InstanceService) Reassign(ctx context.Context, params ReassignParams) (persistence.RoutineInstance, error) {
	instance, err := s.instances.GetInstance(ctx, params.InstanceID)
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}

	if err := s.requireManagePermission(ctx, params.Principal, instance.OrganizationID); err != nil {
		return persistence.RoutineInstance{}, err
	}
	if !routine.Reassignable(instance.Status) {
		return persistence.RoutineInstance{}, ErrConflict
	}

	change := persistence.AssigneeChange{}
	if params.AssigneeID != "" {
		assigneeID := params.AssigneeID
		assigneeName := params.AssigneeName
		change.AssigneeID = &assigneeID
		change.AssigneeName = &assigneeName
	}

	updated, err := s.instances.UpdateAssignee(ctx, params.InstanceID, routine.StatusScheduled, change, s.now())
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}

	s.recordAudit(ctx, audit.Event{
		Action:         string(routine.ActionReassign),
		InstanceID:     params.InstanceID,
		ActorID:        params.Principal.ActorID,
		PriorAssignee:  instance.AssigneeID,
		NewAssignee:    change.AssigneeID,
		OccurredAt:     s.now(),
		OrganizationID: instance.OrganizationID,
	})
	return updated, nil
}

// Delete hard-removes an instance that is still scheduled or already
// cancelled. Instances with recorded execution dependencies are refused with
// a DependencyError instead of cascading a silent removal.
func (s *InstanceService) Delete(ctx context.Context, principal Principal, instanceID string) error {
	instance, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return mapRepoError(err)
	}

	if err := s.requireManagePermission(ctx, principal, instance.OrganizationID); err != nil {
		return err
	}
	if !routine.Deletable(instance.Status) {
		return ErrConflict
	}

	if instance.StepsCompleted > 0 {
		return &DependencyError{InstanceID: instanceID, Reason: "step progress has been recorded"}
	}
	if s.dependencies != nil {
		blocked, err := s.dependencies.HasExecutionRecords(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("dependency check: %w", err)
		}
		if blocked {
			return &DependencyError{InstanceID: instanceID, Reason: "execution records reference this instance"}
		}
	}

	if err := s.instances.DeleteInstance(ctx, instanceID, []routine.Status{routine.StatusScheduled, routine.StatusCancelled}); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// MarkMissed transitions a stale scheduled instance to missed. Used by the
// periodic sweep; the conditional write keeps it safe against a member
// starting the instance concurrently.
func (s *InstanceService) MarkMissed(ctx context.Context, instanceID string) (persistence.RoutineInstance, error) {
	updated, err := s.instances.UpdateStatus(ctx, instanceID,
		routine.TransitionSources(routine.ActionMiss), routine.StatusMissed, nil, s.now())
	if err != nil {
		return persistence.RoutineInstance{}, mapRepoError(err)
	}
	return updated, nil
}

func (s *InstanceService) requireAssigneeOrManager(ctx context.Context, principal Principal, instance persistence.RoutineInstance) error {
	if instance.AssigneeID != nil && *instance.AssigneeID == principal.ActorID {
		return nil
	}
	if s.permissions == nil {
		return nil
	}
	allowed, err := s.permissions.HasPermission(ctx, principal.ActorID, instance.OrganizationID, PermissionManageSchedules)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func (s *InstanceService) requireManagePermission(ctx context.Context, principal Principal, organizationID string) error {
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

func (s *InstanceService) eligibleMember(ctx context.Context, organizationID, stableID, actorID string) (Member, error) {
	if s.members == nil {
		return Member{ID: actorID}, nil
	}
	members, err := s.members.EligibleMembers(ctx, organizationID, stableID)
	if err != nil {
		return Member{}, fmt.Errorf("load eligible members: %w", err)
	}
	for _, member := range members {
		if member.ID == actorID {
			return member, nil
		}
	}
	return Member{}, ErrForbidden
}

// recordAudit is fire-and-forget: a failing audit sink never fails the
// transition that produced the event.
func (s *InstanceService) recordAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, event); err != nil {
		serviceLogger(ctx, s.logger, "instance", "audit").
			WarnContext(ctx, "audit record failed", "action", event.Action, "error", err)
	}
}
