package cron

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtzanidakis/apiary/internal/config"
	"github.com/mtzanidakis/apiary/internal/orchestrator"
	"github.com/mtzanidakis/apiary/internal/store"
	"github.com/mtzanidakis/apiary/internal/swarm"
)

func newTestRunner(t *testing.T) (*Runner, *store.Store, *swarm.Registry) {
	t.Helper()

	db, err := store.New(filepath.Join(t.TempDir(), "apiary.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg := swarm.NewRegistry(nil, nil)
	orch := orchestrator.New(reg, &orchestrator.SimulatedExecutor{Scale: 0.001}, nil, swarm.StrategyAuto)

	return New(db, orch, config.CronConfig{PollInterval: time.Second}), db, reg
}

func TestPollSubmitsDueSchedule(t *testing.T) {
	r, db, reg := newTestRunner(t)

	sw, _ := reg.CreateSwarm(swarm.TopologyMesh, 4)
	reg.Spawn(sw.ID, "specialist", nil)

	past := time.Now().Add(-time.Minute)
	if err := db.SaveSchedule(&store.Schedule{
		ID:          "sc1",
		SwarmID:     sw.ID,
		Name:        "heartbeat",
		Schedule:    `{"kind":"interval","interval_ms":60000}`,
		Description: "run the heartbeat checks",
		Status:      "active",
		NextRunAt:   &past,
	}); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	r.poll(context.Background())

	tasks := reg.ListTasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 submitted task, got %d", len(tasks))
	}
	if tasks[0].Description != "run the heartbeat checks" {
		t.Errorf("unexpected task description %q", tasks[0].Description)
	}

	sc, _ := db.GetSchedule("sc1")
	if sc.LastStatus != "success" {
		t.Errorf("expected success run status, got %q", sc.LastStatus)
	}
	if sc.NextRunAt == nil || !sc.NextRunAt.After(time.Now()) {
		t.Errorf("expected next run rescheduled into the future, got %v", sc.NextRunAt)
	}
	if sc.Status != "active" {
		t.Errorf("expected schedule to stay active, got %s", sc.Status)
	}
}

func TestPollCompletesOneOffSchedule(t *testing.T) {
	r, db, reg := newTestRunner(t)

	sw, _ := reg.CreateSwarm(swarm.TopologyMesh, 4)
	reg.Spawn(sw.ID, "specialist", nil)

	past := time.Now().Add(-time.Minute)
	_ = db.SaveSchedule(&store.Schedule{
		ID:          "sc1",
		SwarmID:     sw.ID,
		Name:        "one-shot",
		Schedule:    `{"kind":"once","at_ms":1000}`,
		Description: "single migration pass",
		Status:      "active",
		NextRunAt:   &past,
	})

	r.poll(context.Background())

	sc, _ := db.GetSchedule("sc1")
	if sc.Status != "completed" {
		t.Errorf("expected one-off marked completed, got %s", sc.Status)
	}
	if sc.NextRunAt != nil {
		t.Errorf("expected no further runs, got %v", sc.NextRunAt)
	}
}

func TestPollRecordsSubmissionError(t *testing.T) {
	r, db, _ := newTestRunner(t)

	past := time.Now().Add(-time.Minute)
	_ = db.SaveSchedule(&store.Schedule{
		ID:          "sc1",
		SwarmID:     "ghost",
		Name:        "orphan",
		Schedule:    `{"kind":"interval","interval_ms":60000}`,
		Description: "work for a destroyed swarm",
		Status:      "active",
		NextRunAt:   &past,
	})

	r.poll(context.Background())

	sc, _ := db.GetSchedule("sc1")
	if sc.LastStatus != "error" || sc.LastError == "" {
		t.Errorf("expected recorded error, got %q/%q", sc.LastStatus, sc.LastError)
	}
}
