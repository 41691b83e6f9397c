// Package sweep periodically transitions stale scheduled instances to
// missed. The sweep itself owns no state machine logic: each transition goes
// through the same conditional write as every other lifecycle mutation, so a
// member starting an instance concurrently always wins or loses cleanly.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// InstanceSource lists candidate instances for the sweep.
type InstanceSource interface {
	ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.RoutineInstance, error)
}

// Marker applies the missed transition.
type Marker interface {
	MarkMissed(ctx context.Context, instanceID string) (persistence.RoutineInstance, error)
}

// Sweeper runs the scheduled-to-missed sweep on a cron schedule.
type Sweeper struct {
	instances InstanceSource
	marker    Marker
	now       func() time.Time
	logger    *slog.Logger
	cron      *cron.Cron
}

// New constructs a Sweeper.
func New(instances InstanceSource, marker Marker, now func() time.Time, logger *slog.Logger) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		instances: instances,
		marker:    marker,
		now:       now,
		logger:    logger,
	}
}

// Start schedules the sweep with a standard cron expression and runs it until
// Stop is called.
func (s *Sweeper) Start(spec string) error {
	runner := cron.New()
	if _, err := runner.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			s.logger.Warn("missed sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	runner.Start()
	s.cron = runner
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Run marks every scheduled instance whose date has passed as missed and
// returns the number of instances transitioned. Races with concurrent
// lifecycle actions are expected and skipped.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	cutoff := routine.DateOf(s.now()).AddDate(0, 0, -1)
	stale, err := s.instances.ListInstances(ctx, persistence.InstanceFilter{
		To:       &cutoff,
		Statuses: []routine.Status{routine.StatusScheduled},
	})
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, instance := range stale {
		if _, err := s.marker.MarkMissed(ctx, instance.ID); err != nil {
			if errors.Is(err, application.ErrConflict) || errors.Is(err, application.ErrNotFound) {
				continue
			}
			s.logger.Warn("failed to mark instance missed", "instance_id", instance.ID, "error", err)
			continue
		}
		marked++
	}

	if marked > 0 {
		s.logger.Info("missed sweep completed", "marked", marked, "cutoff", routine.FormatDate(cutoff))
	}
	return marked, nil
}
