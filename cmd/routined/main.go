package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/audit"
	"github.com/maxton76/stall-bokning-sub003/internal/config"
	"github.com/maxton76/stall-bokning-sub003/internal/holiday"
	httptransport "github.com/maxton76/stall-bokning-sub003/internal/http"
	"github.com/maxton76/stall-bokning-sub003/internal/identity"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence/sqlite"
	"github.com/maxton76/stall-bokning-sub003/internal/sweep"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	var holidays holiday.Calendar = holiday.None{}
	if cfg.HolidayFile != "" {
		calendar, err := holiday.LoadFile(cfg.HolidayFile)
		if err != nil {
			logger.Error("failed to load holiday calendar", "error", err, "path", cfg.HolidayFile)
			os.Exit(1)
		}
		holidays = calendar
	}

	identityClient := identity.NewClient(cfg.IdentityBaseURL, nil)
	directory := newMemberDirectoryAdapter(identityClient)

	auditSink := audit.NewDispatcher(audit.LogRecorder{Logger: logger}, cfg.AuditBuffer, logger)
	defer auditSink.Close()

	idGenerator := func() string { return randomHex(16) }
	now := time.Now

	scheduleService := application.NewScheduleService(application.ScheduleServiceConfig{
		Schedules:    storage.Schedules(),
		Instances:    storage.Instances(),
		Members:      directory,
		Permissions:  identityClient,
		Holidays:     holidays,
		Locale:       cfg.HolidayLocale,
		LookbackDays: cfg.FairnessLookbackDays,
		IDGenerator:  idGenerator,
		Now:          now,
		Logger:       logger,
	})
	instanceService := application.NewInstanceService(application.InstanceServiceConfig{
		Instances:    storage.Instances(),
		Members:      directory,
		Permissions:  identityClient,
		Dependencies: noExecutionRecords{},
		Auditor:      auditSink,
		Now:          now,
		Logger:       logger,
	})

	sweeper := sweep.New(storage.Instances(), instanceService, now, logger)
	if err := sweeper.Start(cfg.SweepCronSpec); err != nil {
		logger.Error("failed to start missed sweep", "error", err, "spec", cfg.SweepCronSpec)
		os.Exit(1)
	}
	defer sweeper.Stop()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules: httptransport.NewScheduleHandler(scheduleService, logger),
		Instances: httptransport.NewInstanceHandler(instanceService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(cfg.RequestsPerSecond, cfg.RequestBurst, logger),
			httptransport.RequireActor(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("routines API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type memberDirectoryAdapter struct {
	client *identity.Client
}

func newMemberDirectoryAdapter(client *identity.Client) *memberDirectoryAdapter {
	return &memberDirectoryAdapter{client: client}
}

func (a *memberDirectoryAdapter) EligibleMembers(ctx context.Context, organizationID, stableID string) ([]application.Member, error) {
	entries, err := a.client.EligibleMembers(ctx, organizationID, stableID)
	if err != nil {
		return nil, err
	}
	members := make([]application.Member, 0, len(entries))
	for _, entry := range entries {
		members = append(members, application.Member{ID: entry.ID, DisplayName: entry.DisplayName})
	}
	return members, nil
}

// noExecutionRecords reports no external execution artifacts. Deletion is
// still guarded by the progress counters stored on the instance itself.
type noExecutionRecords struct{}

func (noExecutionRecords) HasExecutionRecords(context.Context, string) (bool, error) {
	return false, nil
}
