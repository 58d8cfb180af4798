package swarm

import (
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil, nil)
}

func TestCreateSwarmTopologies(t *testing.T) {
	r := newTestRegistry(t)

	for _, topology := range []Topology{TopologyHierarchical, TopologyMesh, TopologyRing, TopologyStar} {
		sw, err := r.CreateSwarm(topology, 4)
		if err != nil {
			t.Fatalf("create %s swarm: %v", topology, err)
		}
		if sw.Status != SwarmActive {
			t.Errorf("%s: expected active status, got %s", topology, sw.Status)
		}
		if sw.Structure == nil {
			t.Errorf("%s: expected topology structure", topology)
		}
	}
}

func TestCreateSwarmUnknownTopology(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.CreateSwarm("pentagram", 4)
	if !errors.Is(err, ErrUnknownTopology) {
		t.Fatalf("expected ErrUnknownTopology, got %v", err)
	}
}

func TestSpawnDefaultCapabilities(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)

	coder, err := r.Spawn(sw.ID, "coder", nil)
	if err != nil {
		t.Fatalf("spawn coder: %v", err)
	}
	if !coder.HasCapability("implementation") {
		t.Error("expected coder to default to implementation capability")
	}

	// Unknown roles fall back to the specialist set.
	mystery, err := r.Spawn(sw.ID, "haruspex", nil)
	if err != nil {
		t.Fatalf("spawn unknown role: %v", err)
	}
	if !mystery.HasCapability("general") {
		t.Error("expected unknown role to fall back to general capability")
	}

	// Explicit capabilities win over the role table.
	custom, err := r.Spawn(sw.ID, "coder", []string{"cobol"})
	if err != nil {
		t.Fatalf("spawn custom: %v", err)
	}
	if custom.HasCapability("implementation") || !custom.HasCapability("cobol") {
		t.Error("expected explicit capabilities to replace role defaults")
	}
}

func TestSpawnUnknownSwarm(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Spawn("nope", "coder", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDestroySwarm(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyRing, 4)
	a, _ := r.Spawn(sw.ID, "coder", nil)

	task := &Task{
		ID:      "t1",
		SwarmID: sw.ID,
		Status:  TaskPending,
		Subtasks: []Subtask{
			{ID: "st1", TaskID: "t1", Type: "general"},
		},
	}
	if err := r.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := r.BeginTask("t1"); err != nil {
		t.Fatalf("begin task: %v", err)
	}

	if err := r.DestroySwarm(sw.ID); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	if _, err := r.GetSwarm(sw.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected swarm to be gone")
	}
	if _, err := r.GetAgent(a.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected member agent to be discarded")
	}

	got, err := r.GetTask("t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != TaskCancelled {
		t.Errorf("expected in-progress task to be cancelled, got %s", got.Status)
	}
}

func TestDestroySwarmNotFound(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.DestroySwarm("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordOutcomeMeanDuration(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)
	a, _ := r.Spawn(sw.ID, "coder", nil)

	r.RecordOutcome(a.ID, 100, true)
	r.RecordOutcome(a.ID, 200, true)

	got, _ := r.GetAgent(a.ID)
	if got.MeanDurationMs != 150 {
		t.Errorf("expected mean 150, got %v", got.MeanDurationMs)
	}
	if got.CompletedTasks != 2 {
		t.Errorf("expected 2 completed tasks, got %d", got.CompletedTasks)
	}
}

// Success rate decays only on failure; successes never raise it back.
// The asymmetry is intentional: the rate is failure-weighted, not a
// moving average over all outcomes.
func TestRecordOutcomeFailureDecay(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)
	a, _ := r.Spawn(sw.ID, "coder", nil)

	r.RecordOutcome(a.ID, 100, true) // rate stays 1.0, n=1
	r.RecordOutcome(a.ID, 100, false)

	got, _ := r.GetAgent(a.ID)
	if got.SuccessRate != 0.5 {
		t.Errorf("expected rate 0.5 after one success and one failure, got %v", got.SuccessRate)
	}

	// Later successes leave the decayed rate untouched.
	r.RecordOutcome(a.ID, 100, true)
	got, _ = r.GetAgent(a.ID)
	if got.SuccessRate != 0.5 {
		t.Errorf("expected rate to stay 0.5 after success, got %v", got.SuccessRate)
	}
}

func TestRecordOutcomeMissingAgent(t *testing.T) {
	r := newTestRegistry(t)

	// Agent evicted or swarm destroyed mid-execution: must not panic.
	r.RecordOutcome("gone", 100, true)
}

func TestAssignReleaseInvariant(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)
	a, _ := r.Spawn(sw.ID, "coder", nil)

	if !r.AssignAgent(a.ID, "st1") {
		t.Fatal("expected assignment of idle agent to succeed")
	}
	got, _ := r.GetAgent(a.ID)
	if got.Status != AgentBusy || got.CurrentSubtaskID != "st1" {
		t.Errorf("expected busy with current subtask st1, got %s/%q", got.Status, got.CurrentSubtaskID)
	}

	// A busy agent cannot be double-booked.
	if r.AssignAgent(a.ID, "st2") {
		t.Error("expected assignment of busy agent to fail")
	}

	r.ReleaseAgent(a.ID)
	got, _ = r.GetAgent(a.ID)
	if got.Status != AgentIdle || got.CurrentSubtaskID != "" {
		t.Errorf("expected idle with no current subtask, got %s/%q", got.Status, got.CurrentSubtaskID)
	}
}

func TestCompleteTaskFreezesResults(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)

	task := &Task{
		ID:       "t1",
		SwarmID:  sw.ID,
		Status:   TaskPending,
		Subtasks: []Subtask{{ID: "st1", TaskID: "t1"}},
	}
	_ = r.CreateTask(task)
	_ = r.BeginTask("t1")

	results := []ExecutionResult{{SubtaskID: "st1", Outcome: OutcomeFulfilled}}
	completed, ok := r.CompleteTask("t1", []string{"a1"}, results)
	if !ok {
		t.Fatal("expected completion to apply")
	}
	if completed.Status != TaskCompleted || completed.CompletedAt == nil {
		t.Error("expected completed status with end timestamp")
	}
	if len(completed.Results) != 1 || completed.Results[0].SubtaskID != "st1" {
		t.Error("expected frozen results in subtask order")
	}

	// A second completion attempt is bookkeeping-only.
	if _, ok := r.CompleteTask("t1", nil, nil); ok {
		t.Error("expected repeat completion to be rejected")
	}
}

func TestCompleteTaskAfterCancellation(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)

	task := &Task{
		ID:       "t1",
		SwarmID:  sw.ID,
		Status:   TaskPending,
		Subtasks: []Subtask{{ID: "st1", TaskID: "t1"}},
	}
	_ = r.CreateTask(task)
	_ = r.BeginTask("t1")
	_ = r.DestroySwarm(sw.ID)

	got, ok := r.CompleteTask("t1", nil, []ExecutionResult{{SubtaskID: "st1"}})
	if ok {
		t.Fatal("expected completion after cancellation to be a no-op")
	}
	if got.Status != TaskCancelled {
		t.Errorf("expected task to stay cancelled, got %s", got.Status)
	}
}

func TestSwarmLoad(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)

	if load := r.SwarmLoad(sw.ID); load != 0 {
		t.Errorf("expected zero load for empty swarm, got %v", load)
	}

	a1, _ := r.Spawn(sw.ID, "coder", nil)
	_, _ = r.Spawn(sw.ID, "tester", nil)
	r.AssignAgent(a1.ID, "st1")

	if load := r.SwarmLoad(sw.ID); load != 0.5 {
		t.Errorf("expected load 0.5, got %v", load)
	}
}

func TestIdleAgentsSnapshot(t *testing.T) {
	r := newTestRegistry(t)
	sw, _ := r.CreateSwarm(TopologyMesh, 4)
	a1, _ := r.Spawn(sw.ID, "coder", nil)
	a2, _ := r.Spawn(sw.ID, "tester", nil)

	r.AssignAgent(a1.ID, "st1")

	idle := r.IdleAgents(sw.ID)
	if len(idle) != 1 || idle[0].ID != a2.ID {
		t.Fatalf("expected only the idle agent in the snapshot")
	}

	// Snapshots are copies: mutating one must not touch the registry.
	idle[0].Capabilities["hacked"] = true
	got, _ := r.GetAgent(a2.ID)
	if got.HasCapability("hacked") {
		t.Error("expected registry record to be isolated from snapshot mutation")
	}
}
