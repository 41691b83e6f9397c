package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
	"github.com/maxton76/stall-bokning-sub003/internal/testfixtures"
)

type instanceServiceDeps struct {
	instances    *testfixtures.MemoryInstanceRepository
	directory    *testfixtures.StaticDirectory
	permissions  *testfixtures.StaticPermissions
	dependencies *testfixtures.StaticDependencies
	auditor      *testfixtures.RecordingAuditor
	clock        *testfixtures.Clock
}

func newInstanceService(deps instanceServiceDeps) *application.InstanceService {
	if deps.instances == nil {
		deps.instances = testfixtures.NewMemoryInstanceRepository()
	}
	if deps.directory == nil {
		deps.directory = &testfixtures.StaticDirectory{}
	}
	if deps.permissions == nil {
		deps.permissions = &testfixtures.StaticPermissions{AllowAll: true}
	}
	if deps.dependencies == nil {
		deps.dependencies = &testfixtures.StaticDependencies{}
	}
	if deps.auditor == nil {
		deps.auditor = &testfixtures.RecordingAuditor{}
	}
	if deps.clock == nil {
		deps.clock = testfixtures.NewClock(time.Time{})
	}
	return application.NewInstanceService(application.InstanceServiceConfig{
		Instances:    deps.instances,
		Members:      deps.directory,
		Permissions:  deps.permissions,
		Dependencies: deps.dependencies,
		Auditor:      deps.auditor,
		Now:          deps.clock.NowFunc(),
	})
}

func TestInstanceService_CreateAdHocInstance(t *testing.T) {
	t.Parallel()

	instances := testfixtures.NewMemoryInstanceRepository()
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	date, _ := routine.ParseDate("2026-03-02")
	input := application.AdHocInstanceInput{
		OrganizationID: "org-001",
		StableID:       "stable-001",
		TemplateID:     "template-evening",
		ScheduledDate:  date,
		StartTime:      "18:00",
		AssigneeID:     "member-a",
		AssigneeName:   "Anna",
		PointsValue:    15,
		StepsTotal:     4,
	}

	created, err := svc.CreateAdHocInstance(context.Background(), application.CreateInstanceParams{
		Principal: application.Principal{ActorID: "member-001"},
		Input:     input,
	})
	if err != nil {
		t.Fatalf("CreateAdHocInstance returned error: %v", err)
	}

	if created.ID != routine.InstanceID("template-evening", "stable-001", date) {
		t.Fatalf("unexpected instance ID %q", created.ID)
	}
	if created.ScheduleID != nil {
		t.Fatal("ad hoc instance must not reference a schedule")
	}
	if created.Status != routine.StatusScheduled {
		t.Fatalf("status = %q, want scheduled", created.Status)
	}

	// The same (template, stable, date) collides.
	_, err = svc.CreateAdHocInstance(context.Background(), application.CreateInstanceParams{
		Principal: application.Principal{ActorID: "member-001"},
		Input:     input,
	})
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate, got %v", err)
	}
}

func TestInstanceService_CreateAdHocInstance_Validation(t *testing.T) {
	t.Parallel()

	svc := newInstanceService(instanceServiceDeps{})
	_, err := svc.CreateAdHocInstance(context.Background(), application.CreateInstanceParams{
		Principal: application.Principal{ActorID: "member-001"},
		Input:     application.AdHocInstanceInput{StartTime: "late"},
	})

	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"organization_id", "stable_id", "template_id", "scheduled_date", "start_time"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Errorf("expected field %q in %v", field, vErr.FieldErrors)
		}
	}
}

func TestInstanceService_Start_ByAssignee(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceAssignee("member-a", "Anna"))
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	updated, err := svc.Start(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if updated.Status != routine.StatusStarted {
		t.Fatalf("status = %q, want started", updated.Status)
	}
}

func TestInstanceService_Start_WrongActor(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceAssignee("member-a", "Anna"))
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	_, err := svc.Start(context.Background(), application.Principal{ActorID: "member-b"}, fixture.ID)
	if !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInstanceService_Start_ClaimsOpenInstance(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture()
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	directory := &testfixtures.StaticDirectory{Members: []application.Member{
		{ID: "member-b", DisplayName: "Bea"},
	}}
	svc := newInstanceService(instanceServiceDeps{instances: instances, directory: directory})

	updated, err := svc.Start(context.Background(), application.Principal{ActorID: "member-b"}, fixture.ID)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if updated.Status != routine.StatusStarted {
		t.Fatalf("status = %q, want started", updated.Status)
	}
	if updated.AssigneeID == nil || *updated.AssigneeID != "member-b" {
		t.Fatalf("assignee = %v, want member-b", updated.AssigneeID)
	}
	if updated.AssigneeName == nil || *updated.AssigneeName != "Bea" {
		t.Fatalf("assignee name = %v, want Bea", updated.AssigneeName)
	}
}

func TestInstanceService_Start_IneligibleMemberCannotClaim(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture()
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	directory := &testfixtures.StaticDirectory{Members: []application.Member{
		{ID: "member-a", DisplayName: "Anna"},
	}}
	svc := newInstanceService(instanceServiceDeps{instances: instances, directory: directory})

	_, err := svc.Start(context.Background(), application.Principal{ActorID: "member-x"}, fixture.ID)
	if !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInstanceService_Start_AlreadyStarted(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(
		testfixtures.WithInstanceAssignee("member-a", "Anna"),
		testfixtures.WithInstanceStatus(routine.StatusStarted),
	)
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	_, err := svc.Start(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInstanceService_Start_NotFound(t *testing.T) {
	t.Parallel()

	svc := newInstanceService(instanceServiceDeps{})
	_, err := svc.Start(context.Background(), application.Principal{ActorID: "member-a"}, "missing")
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInstanceService_Complete(t *testing.T) {
	t.Parallel()

	t.Run("assignee completes started instance", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(
			testfixtures.WithInstanceAssignee("member-a", "Anna"),
			testfixtures.WithInstanceStatus(routine.StatusStarted),
		)
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		updated, err := svc.Complete(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
		if err != nil {
			t.Fatalf("Complete returned error: %v", err)
		}
		if updated.Status != routine.StatusCompleted {
			t.Fatalf("status = %q, want completed", updated.Status)
		}
	})

	t.Run("manager completes on behalf of assignee", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(
			testfixtures.WithInstanceAssignee("member-a", "Anna"),
			testfixtures.WithInstanceStatus(routine.StatusInProgress),
		)
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		permissions := (&testfixtures.StaticPermissions{}).Allow("manager-1", application.PermissionManageSchedules)
		svc := newInstanceService(instanceServiceDeps{instances: instances, permissions: permissions})

		updated, err := svc.Complete(context.Background(), application.Principal{ActorID: "manager-1"}, fixture.ID)
		if err != nil {
			t.Fatalf("Complete returned error: %v", err)
		}
		if updated.Status != routine.StatusCompleted {
			t.Fatalf("status = %q, want completed", updated.Status)
		}
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(
			testfixtures.WithInstanceAssignee("member-a", "Anna"),
			testfixtures.WithInstanceStatus(routine.StatusStarted),
		)
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances, permissions: &testfixtures.StaticPermissions{}})

		_, err := svc.Complete(context.Background(), application.Principal{ActorID: "member-x"}, fixture.ID)
		if !errors.Is(err, application.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("scheduled instance cannot complete", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceAssignee("member-a", "Anna"))
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		_, err := svc.Complete(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
		if !errors.Is(err, application.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestInstanceService_Cancel_RecordsAuditEvent(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(
		testfixtures.WithInstanceAssignee("member-a", "Anna"),
		testfixtures.WithInstanceStatus(routine.StatusStarted),
	)
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	auditor := &testfixtures.RecordingAuditor{}
	svc := newInstanceService(instanceServiceDeps{instances: instances, auditor: auditor})

	updated, err := svc.Cancel(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if updated.Status != routine.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", updated.Status)
	}
	if updated.AssigneeID == nil || *updated.AssigneeID != "member-a" {
		t.Fatal("cancellation must leave the assignee untouched")
	}

	events := auditor.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Action != string(routine.ActionCancel) || events[0].ActorID != "member-a" {
		t.Fatalf("unexpected audit event %+v", events[0])
	}
}

func TestInstanceService_Cancel_CompletedIsConflict(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(
		testfixtures.WithInstanceAssignee("member-a", "Anna"),
		testfixtures.WithInstanceStatus(routine.StatusCompleted),
	)
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	_, err := svc.Cancel(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
	if !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInstanceService_Reassign(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceAssignee("member-a", "Anna"))
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	auditor := &testfixtures.RecordingAuditor{}
	svc := newInstanceService(instanceServiceDeps{instances: instances, auditor: auditor})

	updated, err := svc.Reassign(context.Background(), application.ReassignParams{
		Principal:    application.Principal{ActorID: "manager-1"},
		InstanceID:   fixture.ID,
		AssigneeID:   "member-b",
		AssigneeName: "Bea",
	})
	if err != nil {
		t.Fatalf("Reassign returned error: %v", err)
	}
	if updated.AssigneeID == nil || *updated.AssigneeID != "member-b" {
		t.Fatalf("assignee = %v, want member-b", updated.AssigneeID)
	}

	events := auditor.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	event := events[0]
	if event.PriorAssignee == nil || *event.PriorAssignee != "member-a" {
		t.Fatalf("prior assignee = %v, want member-a", event.PriorAssignee)
	}
	if event.NewAssignee == nil || *event.NewAssignee != "member-b" {
		t.Fatalf("new assignee = %v, want member-b", event.NewAssignee)
	}
}

func TestInstanceService_Reassign_EmptyIDClearsAssignee(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceAssignee("member-a", "Anna"))
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	updated, err := svc.Reassign(context.Background(), application.ReassignParams{
		Principal:  application.Principal{ActorID: "manager-1"},
		InstanceID: fixture.ID,
	})
	if err != nil {
		t.Fatalf("Reassign returned error: %v", err)
	}
	if updated.AssigneeID != nil {
		t.Fatalf("assignee = %v, want cleared", updated.AssigneeID)
	}
}

func TestInstanceService_Reassign_OnlyWhileScheduled(t *testing.T) {
	t.Parallel()

	for _, status := range []routine.Status{routine.StatusStarted, routine.StatusInProgress, routine.StatusCompleted, routine.StatusCancelled, routine.StatusMissed} {
		fixture := testfixtures.NewInstanceFixture(
			testfixtures.WithInstanceAssignee("member-a", "Anna"),
			testfixtures.WithInstanceStatus(status),
		)
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		_, err := svc.Reassign(context.Background(), application.ReassignParams{
			Principal:  application.Principal{ActorID: "manager-1"},
			InstanceID: fixture.ID,
			AssigneeID: "member-b",
		})
		if !errors.Is(err, application.ErrConflict) {
			t.Fatalf("status %q: expected ErrConflict, got %v", status, err)
		}
	}
}

func TestInstanceService_Reassign_RequiresPermission(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture()
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances, permissions: &testfixtures.StaticPermissions{}})

	_, err := svc.Reassign(context.Background(), application.ReassignParams{
		Principal:  application.Principal{ActorID: "member-a"},
		InstanceID: fixture.ID,
		AssigneeID: "member-b",
	})
	if !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInstanceService_Delete(t *testing.T) {
	t.Parallel()

	t.Run("scheduled instance without progress is removed", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture()
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		if err := svc.Delete(context.Background(), application.Principal{ActorID: "manager-1"}, fixture.ID); err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}
		if _, err := instances.GetInstance(context.Background(), fixture.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected instance gone, got %v", err)
		}
	})

	t.Run("started instance is retained", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(
			testfixtures.WithInstanceAssignee("member-a", "Anna"),
			testfixtures.WithInstanceStatus(routine.StatusStarted),
		)
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		err := svc.Delete(context.Background(), application.Principal{ActorID: "manager-1"}, fixture.ID)
		if !errors.Is(err, application.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("recorded step progress blocks deletion", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceSteps(1, 3))
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		err := svc.Delete(context.Background(), application.Principal{ActorID: "manager-1"}, fixture.ID)
		var dErr *application.DependencyError
		if !errors.As(err, &dErr) {
			t.Fatalf("expected DependencyError, got %v", err)
		}
		if dErr.InstanceID != fixture.ID {
			t.Fatalf("dependency error names %q, want %q", dErr.InstanceID, fixture.ID)
		}
	})

	t.Run("execution records block deletion", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture()
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		dependencies := &testfixtures.StaticDependencies{Blocked: map[string]bool{fixture.ID: true}}
		svc := newInstanceService(instanceServiceDeps{instances: instances, dependencies: dependencies})

		err := svc.Delete(context.Background(), application.Principal{ActorID: "manager-1"}, fixture.ID)
		var dErr *application.DependencyError
		if !errors.As(err, &dErr) {
			t.Fatalf("expected DependencyError, got %v", err)
		}
	})

	t.Run("cancelled instance is removable", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture(testfixtures.WithInstanceStatus(routine.StatusCancelled))
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances})

		if err := svc.Delete(context.Background(), application.Principal{ActorID: "manager-1"}, fixture.ID); err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		t.Parallel()

		fixture := testfixtures.NewInstanceFixture()
		instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence())
		svc := newInstanceService(instanceServiceDeps{instances: instances, permissions: &testfixtures.StaticPermissions{}})

		err := svc.Delete(context.Background(), application.Principal{ActorID: "member-a"}, fixture.ID)
		if !errors.Is(err, application.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestInstanceService_MarkMissed(t *testing.T) {
	t.Parallel()

	fixture := testfixtures.NewInstanceFixture()
	started := testfixtures.NewInstanceFixture(
		testfixtures.WithInstanceAssignee("member-a", "Anna"),
		testfixtures.WithInstanceStatus(routine.StatusStarted),
	)
	instances := testfixtures.NewMemoryInstanceRepository(fixture.Persistence(), started.Persistence())
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	updated, err := svc.MarkMissed(context.Background(), fixture.ID)
	if err != nil {
		t.Fatalf("MarkMissed returned error: %v", err)
	}
	if updated.Status != routine.StatusMissed {
		t.Fatalf("status = %q, want missed", updated.Status)
	}

	if _, err := svc.MarkMissed(context.Background(), started.ID); !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict for started instance, got %v", err)
	}
}

func TestInstanceService_ListInstances_Filters(t *testing.T) {
	t.Parallel()

	monday, _ := routine.ParseDate("2026-03-02")
	instances := testfixtures.NewMemoryInstanceRepository(
		testfixtures.NewInstanceFixture(testfixtures.WithInstanceDate(monday)).Persistence(),
		testfixtures.NewInstanceFixture(testfixtures.WithInstanceDate(monday.AddDate(0, 0, 7))).Persistence(),
		testfixtures.NewInstanceFixture(
			testfixtures.WithInstanceDate(monday),
			testfixtures.WithInstanceStatus(routine.StatusCancelled),
		).Persistence(),
	)
	svc := newInstanceService(instanceServiceDeps{instances: instances})

	to := monday.AddDate(0, 0, 1)
	listed, err := svc.ListInstances(context.Background(), application.ListInstancesParams{
		Principal: application.Principal{ActorID: "member-a"},
		StableID:  "stable-001",
		To:        &to,
		Statuses:  []routine.Status{routine.StatusScheduled},
	})
	if err != nil {
		t.Fatalf("ListInstances returned error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(listed))
	}
}
