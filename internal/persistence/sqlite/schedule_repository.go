package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// ScheduleRepository implements persistence.ScheduleRepository on SQLite.
type ScheduleRepository struct {
	db *sql.DB
}

const scheduleColumns = `id, organization_id, stable_id, template_id, start_date, end_date,
	pattern, repeat_days, include_holidays, start_time, assignment_mode,
	default_assignee_id, default_assignee_name, points_value, enabled,
	created_by, created_at, updated_at`

// CreateSchedule inserts a new schedule definition.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.RoutineSchedule) error {
	query := `INSERT INTO routine_schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.OrganizationID,
		schedule.StableID,
		schedule.TemplateID,
		routine.FormatDate(schedule.StartDate),
		routine.FormatDate(schedule.EndDate),
		schedule.Pattern,
		encodeWeekdays(schedule.RepeatDays),
		boolToInt(schedule.IncludeHolidays),
		schedule.StartTime,
		schedule.AssignmentMode,
		nullString(schedule.DefaultAssigneeID),
		nullString(schedule.DefaultAssigneeName),
		schedule.PointsValue,
		boolToInt(schedule.Enabled),
		schedule.CreatedBy,
		formatTime(schedule.CreatedAt),
		formatTime(schedule.UpdatedAt),
	)
	return mapError(err)
}

// GetSchedule retrieves a schedule definition by ID.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.RoutineSchedule, error) {
	if id == "" {
		return persistence.RoutineSchedule{}, persistence.ErrNotFound
	}

	query := `SELECT ` + scheduleColumns + ` FROM routine_schedules WHERE id = ?`
	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return persistence.RoutineSchedule{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.RoutineSchedule{}, err
	}
	return schedule, nil
}

// ListSchedules lists schedule definitions matching the filter, ordered by
// start date then ID.
func (r *ScheduleRepository) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.RoutineSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM routine_schedules`
	var conditions []string
	var args []any

	if filter.StableID != "" {
		conditions = append(conditions, "stable_id = ?")
		args = append(args, filter.StableID)
	}
	if filter.EnabledOnly {
		conditions = append(conditions, "enabled = 1")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var schedules []persistence.RoutineSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (persistence.RoutineSchedule, error) {
	var schedule persistence.RoutineSchedule
	var startDate, endDate, repeatDays, createdAt, updatedAt string
	var includeHolidays, enabled int
	var defaultAssigneeID, defaultAssigneeName sql.NullString

	err := row.Scan(
		&schedule.ID,
		&schedule.OrganizationID,
		&schedule.StableID,
		&schedule.TemplateID,
		&startDate,
		&endDate,
		&schedule.Pattern,
		&repeatDays,
		&includeHolidays,
		&schedule.StartTime,
		&schedule.AssignmentMode,
		&defaultAssigneeID,
		&defaultAssigneeName,
		&schedule.PointsValue,
		&enabled,
		&schedule.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.RoutineSchedule{}, err
	}

	if schedule.StartDate, err = routine.ParseDate(startDate); err != nil {
		return persistence.RoutineSchedule{}, err
	}
	if schedule.EndDate, err = routine.ParseDate(endDate); err != nil {
		return persistence.RoutineSchedule{}, err
	}
	if schedule.RepeatDays, err = decodeWeekdays(repeatDays); err != nil {
		return persistence.RoutineSchedule{}, err
	}
	if schedule.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RoutineSchedule{}, err
	}
	if schedule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.RoutineSchedule{}, err
	}
	schedule.IncludeHolidays = includeHolidays != 0
	schedule.Enabled = enabled != 0
	schedule.DefaultAssigneeID = fromNullString(defaultAssigneeID)
	schedule.DefaultAssigneeName = fromNullString(defaultAssigneeName)

	return schedule, nil
}

func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	sorted := make([]time.Weekday, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, 0, len(sorted))
	for _, day := range sorted {
		parts = append(parts, strconv.Itoa(int(day)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(encoded string) ([]time.Weekday, error) {
	if encoded == "" {
		return nil, nil
	}
	parts := strings.Split(encoded, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < int(time.Sunday) || n > int(time.Saturday) {
			return nil, fmt.Errorf("sqlite: invalid repeat day %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
