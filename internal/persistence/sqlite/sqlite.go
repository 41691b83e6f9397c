// Package sqlite implements the persistence repositories on SQLite via the
// pure-Go modernc.org driver. Conditional writes are expressed as guarded
// UPDATE/DELETE statements so status preconditions are re-checked at write
// time by the storage engine itself.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/persistence"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS routine_schedules (
	id                    TEXT PRIMARY KEY,
	organization_id       TEXT NOT NULL,
	stable_id             TEXT NOT NULL,
	template_id           TEXT NOT NULL,
	start_date            TEXT NOT NULL,
	end_date              TEXT NOT NULL,
	pattern               TEXT NOT NULL,
	repeat_days           TEXT NOT NULL DEFAULT '',
	include_holidays      INTEGER NOT NULL DEFAULT 0,
	start_time            TEXT NOT NULL,
	assignment_mode       TEXT NOT NULL,
	default_assignee_id   TEXT,
	default_assignee_name TEXT,
	points_value          INTEGER NOT NULL DEFAULT 0,
	enabled               INTEGER NOT NULL DEFAULT 1,
	created_by            TEXT NOT NULL,
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS routine_instances (
	id              TEXT PRIMARY KEY,
	schedule_id     TEXT,
	organization_id TEXT NOT NULL,
	stable_id       TEXT NOT NULL,
	template_id     TEXT NOT NULL,
	scheduled_date  TEXT NOT NULL,
	start_time      TEXT NOT NULL,
	assignee_id     TEXT,
	assignee_name   TEXT,
	status          TEXT NOT NULL,
	steps_completed INTEGER NOT NULL DEFAULT 0,
	steps_total     INTEGER NOT NULL DEFAULT 0,
	points_value    INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_instances_stable_date
	ON routine_instances (stable_id, scheduled_date);
CREATE INDEX IF NOT EXISTS idx_instances_assignee_status
	ON routine_instances (assignee_id, status);
CREATE INDEX IF NOT EXISTS idx_instances_status_date
	ON routine_instances (status, scheduled_date);
`

// Storage owns the database handle shared by the repositories.
type Storage struct {
	db *sql.DB
}

// Open opens the SQLite database at the provided DSN.
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent publishers.
	db.SetMaxOpenConns(1)
	return &Storage{db: db}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the schema. Statements are idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping verifies the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Schedules returns the schedule repository bound to this storage.
func (s *Storage) Schedules() *ScheduleRepository {
	return &ScheduleRepository{db: s.db}
}

// Instances returns the instance repository bound to this storage.
func (s *Storage) Instances() *InstanceRepository {
	return &InstanceRepository{db: s.db}
}

// mapError translates driver errors to persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY") && strings.Contains(msg, "constraint") {
		return persistence.ErrDuplicate
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	copied := value.String
	return &copied
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
