package testfixtures

import (
	"context"
	"sync"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/audit"
)

// StaticPermissions is an application.PermissionChecker backed by a fixed
// grant set. An empty set denies everything; AllowAll flips the default.
type StaticPermissions struct {
	AllowAll bool
	Granted  map[string]bool
	Err      error
}

// Allow grants the action to the actor.
func (p *StaticPermissions) Allow(actorID, action string) *StaticPermissions {
	if p.Granted == nil {
		p.Granted = make(map[string]bool)
	}
	p.Granted[actorID+"/"+action] = true
	return p
}

func (p *StaticPermissions) HasPermission(_ context.Context, actorID, _, action string) (bool, error) {
	if p.Err != nil {
		return false, p.Err
	}
	if p.AllowAll {
		return true, nil
	}
	return p.Granted[actorID+"/"+action], nil
}

// StaticDirectory is an application.MemberDirectory returning a fixed member
// list.
type StaticDirectory struct {
	Members []application.Member
	Err     error
}

func (d *StaticDirectory) EligibleMembers(_ context.Context, _, _ string) ([]application.Member, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]application.Member(nil), d.Members...), nil
}

// StaticDependencies is an application.DependencyChecker reporting execution
// records for a fixed instance set.
type StaticDependencies struct {
	Blocked map[string]bool
	Err     error
}

func (d *StaticDependencies) HasExecutionRecords(_ context.Context, instanceID string) (bool, error) {
	if d.Err != nil {
		return false, d.Err
	}
	return d.Blocked[instanceID], nil
}

// RecordingAuditor captures audit events for assertion.
type RecordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
	Err    error
}

func (a *RecordingAuditor) Record(_ context.Context, event audit.Event) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
	return nil
}

// Events returns a snapshot of the captured events.
func (a *RecordingAuditor) Events() []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Event(nil), a.events...)
}
