package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// InstanceRepository implements persistence.InstanceRepository on SQLite.
//
// The conditional mutations embed the expected prior status in the WHERE
// clause, so a lost race surfaces as zero affected rows instead of a silent
// overwrite. Zero rows are then disambiguated into ErrNotFound or
// ErrConflict by a follow-up read.
type InstanceRepository struct {
	db *sql.DB
}

const instanceColumns = `id, schedule_id, organization_id, stable_id, template_id, scheduled_date,
	start_time, assignee_id, assignee_name, status, steps_completed, steps_total,
	points_value, created_at, updated_at`

// CreateInstance inserts a new instance. A duplicate identifier returns
// persistence.ErrDuplicate; with deterministic identifiers this is how
// concurrent publishers collide safely.
func (r *InstanceRepository) CreateInstance(ctx context.Context, instance persistence.RoutineInstance) error {
	query := `INSERT INTO routine_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		instance.ID,
		nullString(instance.ScheduleID),
		instance.OrganizationID,
		instance.StableID,
		instance.TemplateID,
		routine.FormatDate(instance.ScheduledDate),
		instance.StartTime,
		nullString(instance.AssigneeID),
		nullString(instance.AssigneeName),
		string(instance.Status),
		instance.StepsCompleted,
		instance.StepsTotal,
		instance.PointsValue,
		formatTime(instance.CreatedAt),
		formatTime(instance.UpdatedAt),
	)
	return mapError(err)
}

// GetInstance retrieves an instance by ID.
func (r *InstanceRepository) GetInstance(ctx context.Context, id string) (persistence.RoutineInstance, error) {
	if id == "" {
		return persistence.RoutineInstance{}, persistence.ErrNotFound
	}

	query := `SELECT ` + instanceColumns + ` FROM routine_instances WHERE id = ?`
	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return persistence.RoutineInstance{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.RoutineInstance{}, err
	}
	return instance, nil
}

// ListInstances lists instances matching the filter ordered by date then ID.
func (r *InstanceRepository) ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.RoutineInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM routine_instances`
	var conditions []string
	var args []any

	if filter.StableID != "" {
		conditions = append(conditions, "stable_id = ?")
		args = append(args, filter.StableID)
	}
	if filter.TemplateID != "" {
		conditions = append(conditions, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if filter.AssigneeID != "" {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.From != nil {
		conditions = append(conditions, "scheduled_date >= ?")
		args = append(args, routine.FormatDate(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "scheduled_date <= ?")
		args = append(args, routine.FormatDate(*filter.To))
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_date ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var instances []persistence.RoutineInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// UpdateStatus conditionally moves the instance to next.
func (r *InstanceRepository) UpdateStatus(ctx context.Context, id string, expected []routine.Status, next routine.Status, claim *persistence.AssigneeChange, at time.Time) (persistence.RoutineInstance, error) {
	query := `UPDATE routine_instances SET status = ?, updated_at = ?`
	args := []any{string(next), formatTime(at)}

	if claim != nil {
		query += `, assignee_id = ?, assignee_name = ?`
		args = append(args, nullString(claim.AssigneeID), nullString(claim.AssigneeName))
	}

	query += ` WHERE id = ? AND status IN (` + placeholders(len(expected)) + `)`
	args = append(args, id)
	for _, status := range expected {
		args = append(args, string(status))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.RoutineInstance{}, mapError(err)
	}
	if err := r.requireAffected(ctx, id, result); err != nil {
		return persistence.RoutineInstance{}, err
	}
	return r.GetInstance(ctx, id)
}

// UpdateAssignee conditionally rewrites the assignee.
func (r *InstanceRepository) UpdateAssignee(ctx context.Context, id string, expected routine.Status, change persistence.AssigneeChange, at time.Time) (persistence.RoutineInstance, error) {
	query := `UPDATE routine_instances
		SET assignee_id = ?, assignee_name = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		nullString(change.AssigneeID),
		nullString(change.AssigneeName),
		formatTime(at),
		id,
		string(expected),
	)
	if err != nil {
		return persistence.RoutineInstance{}, mapError(err)
	}
	if err := r.requireAffected(ctx, id, result); err != nil {
		return persistence.RoutineInstance{}, err
	}
	return r.GetInstance(ctx, id)
}

// DeleteInstance conditionally removes the instance.
func (r *InstanceRepository) DeleteInstance(ctx context.Context, id string, expected []routine.Status) error {
	query := `DELETE FROM routine_instances WHERE id = ? AND status IN (` + placeholders(len(expected)) + `)`
	args := []any{id}
	for _, status := range expected {
		args = append(args, string(status))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	return r.requireAffected(ctx, id, result)
}

// CompletedPoints aggregates completed workload points per member.
func (r *InstanceRepository) CompletedPoints(ctx context.Context, stableID string, memberIDs []string, since *time.Time) (map[string]int, error) {
	points := make(map[string]int, len(memberIDs))
	if len(memberIDs) == 0 {
		return points, nil
	}

	query := `SELECT assignee_id, COALESCE(SUM(points_value), 0)
		FROM routine_instances
		WHERE stable_id = ? AND status = ? AND assignee_id IN (` + placeholders(len(memberIDs)) + `)`
	args := []any{stableID, string(routine.StatusCompleted)}
	for _, memberID := range memberIDs {
		args = append(args, memberID)
	}
	if since != nil {
		query += ` AND scheduled_date >= ?`
		args = append(args, routine.FormatDate(*since))
	}
	query += ` GROUP BY assignee_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID string
		var sum int
		if err := rows.Scan(&memberID, &sum); err != nil {
			return nil, err
		}
		points[memberID] = sum
	}
	return points, rows.Err()
}

// requireAffected disambiguates a zero-row conditional write into not-found
// versus precondition conflict.
func (r *InstanceRepository) requireAffected(ctx context.Context, id string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.GetInstance(ctx, id); err != nil {
		return err
	}
	return persistence.ErrConflict
}

func scanInstance(row rowScanner) (persistence.RoutineInstance, error) {
	var instance persistence.RoutineInstance
	var scheduleID, assigneeID, assigneeName sql.NullString
	var scheduledDate, status, createdAt, updatedAt string

	err := row.Scan(
		&instance.ID,
		&scheduleID,
		&instance.OrganizationID,
		&instance.StableID,
		&instance.TemplateID,
		&scheduledDate,
		&instance.StartTime,
		&assigneeID,
		&assigneeName,
		&status,
		&instance.StepsCompleted,
		&instance.StepsTotal,
		&instance.PointsValue,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.RoutineInstance{}, err
	}

	if instance.ScheduledDate, err = routine.ParseDate(scheduledDate); err != nil {
		return persistence.RoutineInstance{}, err
	}
	if instance.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RoutineInstance{}, err
	}
	if instance.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.RoutineInstance{}, err
	}
	instance.ScheduleID = fromNullString(scheduleID)
	instance.AssigneeID = fromNullString(assigneeID)
	instance.AssigneeName = fromNullString(assigneeName)
	instance.Status = routine.Status(status)

	return instance, nil
}
