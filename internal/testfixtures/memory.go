package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// MemoryScheduleRepository is an in-memory persistence.ScheduleRepository for
// tests.
type MemoryScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]persistence.RoutineSchedule
}

// NewMemoryScheduleRepository constructs an empty repository, optionally
// seeded with the supplied schedules.
func NewMemoryScheduleRepository(seed ...persistence.RoutineSchedule) *MemoryScheduleRepository {
	repo := &MemoryScheduleRepository{schedules: make(map[string]persistence.RoutineSchedule)}
	for _, schedule := range seed {
		repo.schedules[schedule.ID] = cloneSchedule(schedule)
	}
	return repo
}

func (r *MemoryScheduleRepository) CreateSchedule(_ context.Context, schedule persistence.RoutineSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schedules[schedule.ID]; exists {
		return persistence.ErrDuplicate
	}
	r.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

func (r *MemoryScheduleRepository) GetSchedule(_ context.Context, id string) (persistence.RoutineSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schedule, ok := r.schedules[id]
	if !ok {
		return persistence.RoutineSchedule{}, persistence.ErrNotFound
	}
	return cloneSchedule(schedule), nil
}

func (r *MemoryScheduleRepository) ListSchedules(_ context.Context, filter persistence.ScheduleFilter) ([]persistence.RoutineSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]persistence.RoutineSchedule, 0, len(r.schedules))
	for _, schedule := range r.schedules {
		if filter.StableID != "" && schedule.StableID != filter.StableID {
			continue
		}
		if filter.EnabledOnly && !schedule.Enabled {
			continue
		}
		result = append(result, cloneSchedule(schedule))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MemoryInstanceRepository is an in-memory persistence.InstanceRepository for
// tests. Its conditional mutations mirror the guarded SQL writes of the
// production store.
type MemoryInstanceRepository struct {
	mu        sync.RWMutex
	instances map[string]persistence.RoutineInstance
}

// NewMemoryInstanceRepository constructs an empty repository, optionally
// seeded with the supplied instances.
func NewMemoryInstanceRepository(seed ...persistence.RoutineInstance) *MemoryInstanceRepository {
	repo := &MemoryInstanceRepository{instances: make(map[string]persistence.RoutineInstance)}
	for _, instance := range seed {
		repo.instances[instance.ID] = cloneInstance(instance)
	}
	return repo
}

func (r *MemoryInstanceRepository) CreateInstance(_ context.Context, instance persistence.RoutineInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[instance.ID]; exists {
		return persistence.ErrDuplicate
	}
	r.instances[instance.ID] = cloneInstance(instance)
	return nil
}

func (r *MemoryInstanceRepository) GetInstance(_ context.Context, id string) (persistence.RoutineInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.instances[id]
	if !ok {
		return persistence.RoutineInstance{}, persistence.ErrNotFound
	}
	return cloneInstance(instance), nil
}

func (r *MemoryInstanceRepository) ListInstances(_ context.Context, filter persistence.InstanceFilter) ([]persistence.RoutineInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]persistence.RoutineInstance, 0, len(r.instances))
	for _, instance := range r.instances {
		if !matchesFilter(instance, filter) {
			continue
		}
		result = append(result, cloneInstance(instance))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledDate.Equal(result[j].ScheduledDate) {
			return result[i].ScheduledDate.Before(result[j].ScheduledDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *MemoryInstanceRepository) UpdateStatus(_ context.Context, id string, expected []routine.Status, next routine.Status, claim *persistence.AssigneeChange, at time.Time) (persistence.RoutineInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[id]
	if !ok {
		return persistence.RoutineInstance{}, persistence.ErrNotFound
	}
	if !statusIn(instance.Status, expected) {
		return persistence.RoutineInstance{}, persistence.ErrConflict
	}

	instance.Status = next
	if claim != nil {
		instance.AssigneeID = copyStringPtr(claim.AssigneeID)
		instance.AssigneeName = copyStringPtr(claim.AssigneeName)
	}
	instance.UpdatedAt = at
	r.instances[id] = instance
	return cloneInstance(instance), nil
}

func (r *MemoryInstanceRepository) UpdateAssignee(_ context.Context, id string, expected routine.Status, change persistence.AssigneeChange, at time.Time) (persistence.RoutineInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[id]
	if !ok {
		return persistence.RoutineInstance{}, persistence.ErrNotFound
	}
	if instance.Status != expected {
		return persistence.RoutineInstance{}, persistence.ErrConflict
	}

	instance.AssigneeID = copyStringPtr(change.AssigneeID)
	instance.AssigneeName = copyStringPtr(change.AssigneeName)
	instance.UpdatedAt = at
	r.instances[id] = instance
	return cloneInstance(instance), nil
}

func (r *MemoryInstanceRepository) DeleteInstance(_ context.Context, id string, expected []routine.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if !statusIn(instance.Status, expected) {
		return persistence.ErrConflict
	}
	delete(r.instances, id)
	return nil
}

func (r *MemoryInstanceRepository) CompletedPoints(_ context.Context, stableID string, memberIDs []string, since *time.Time) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}

	totals := make(map[string]int)
	for _, instance := range r.instances {
		if instance.StableID != stableID || instance.Status != routine.StatusCompleted {
			continue
		}
		if instance.AssigneeID == nil {
			continue
		}
		if _, ok := members[*instance.AssigneeID]; !ok {
			continue
		}
		if since != nil && instance.ScheduledDate.Before(*since) {
			continue
		}
		totals[*instance.AssigneeID] += instance.PointsValue
	}
	return totals, nil
}

func matchesFilter(instance persistence.RoutineInstance, filter persistence.InstanceFilter) bool {
	if filter.StableID != "" && instance.StableID != filter.StableID {
		return false
	}
	if filter.TemplateID != "" && instance.TemplateID != filter.TemplateID {
		return false
	}
	if filter.AssigneeID != "" {
		if instance.AssigneeID == nil || *instance.AssigneeID != filter.AssigneeID {
			return false
		}
	}
	if filter.From != nil && instance.ScheduledDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && instance.ScheduledDate.After(*filter.To) {
		return false
	}
	if len(filter.Statuses) > 0 && !statusIn(instance.Status, filter.Statuses) {
		return false
	}
	return true
}

func statusIn(status routine.Status, set []routine.Status) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}

func cloneSchedule(schedule persistence.RoutineSchedule) persistence.RoutineSchedule {
	schedule.RepeatDays = append([]time.Weekday(nil), schedule.RepeatDays...)
	schedule.DefaultAssigneeID = copyStringPtr(schedule.DefaultAssigneeID)
	schedule.DefaultAssigneeName = copyStringPtr(schedule.DefaultAssigneeName)
	return schedule
}

func cloneInstance(instance persistence.RoutineInstance) persistence.RoutineInstance {
	instance.ScheduleID = copyStringPtr(instance.ScheduleID)
	instance.AssigneeID = copyStringPtr(instance.AssigneeID)
	instance.AssigneeName = copyStringPtr(instance.AssigneeName)
	return instance
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
