// Package cron submits stored schedules to the orchestrator when they
// come due.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtzanidakis/apiary/internal/config"
	"github.com/mtzanidakis/apiary/internal/orchestrator"
	"github.com/mtzanidakis/apiary/internal/schedule"
	"github.com/mtzanidakis/apiary/internal/store"
)

type Runner struct {
	store        *store.Store
	orch         *orchestrator.Orchestrator
	pollInterval time.Duration
}

func New(s *store.Store, orch *orchestrator.Orchestrator, cfg config.CronConfig) *Runner {
	return &Runner{
		store:        s,
		orch:         orch,
		pollInterval: cfg.PollInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.pollInterval == 0 {
		r.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	slog.Info("cron runner started", "poll_interval", r.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cron runner stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Runner) poll(ctx context.Context) {
	due, err := r.store.GetDueSchedules(time.Now())
	if err != nil {
		slog.Error("failed to get due schedules", "error", err)
		return
	}

	for _, sc := range due {
		r.submit(ctx, sc)
	}

	// Piggyback KV housekeeping on the poll loop.
	if purged, err := r.store.PurgeExpired(); err != nil {
		slog.Error("failed to purge expired kv entries", "error", err)
	} else if purged > 0 {
		slog.Debug("purged expired kv entries", "count", purged)
	}
}

func (r *Runner) submit(ctx context.Context, sc store.Schedule) {
	slog.Info("submitting scheduled task", "id", sc.ID, "name", sc.Name, "swarm", sc.SwarmID)

	_, err := r.orch.Run(ctx, orchestrator.TaskSpec{
		SwarmID:     sc.SwarmID,
		Description: sc.Description,
		Priority:    sc.Priority,
		Strategy:    sc.Strategy,
	})

	lastStatus := "success"
	lastError := ""
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("scheduled task failed", "id", sc.ID, "error", err)
	}

	nextRun := schedule.NextRun(sc.Schedule)

	if err := r.store.UpdateScheduleRun(sc.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("failed to update schedule run", "id", sc.ID, "error", err)
	}

	// One-off schedules complete when no next run remains.
	if nextRun == nil {
		if err := r.store.UpdateScheduleStatus(sc.ID, "completed"); err != nil {
			slog.Error("failed to complete schedule", "id", sc.ID, "error", err)
		}
	}
}
