package swarm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal is the write-through persistence hook. The registry's in-memory
// state is authoritative; the journal is updated after every mutating call
// and never read back to resolve scheduling decisions.
type Journal interface {
	SaveSwarm(s *Swarm) error
	DeleteSwarm(id string) error
	SaveAgent(a *Agent) error
	DeleteAgent(id string) error
	SaveTask(t *Task) error
}

// EventSink receives named lifecycle events. Implementations must not
// block; the registry fires and forgets.
type EventSink interface {
	Emit(event string, fields map[string]any)
}

// Registry owns the swarm, agent and task records. All mutation goes
// through its methods; the single mutex serializes record updates across
// concurrently executing subtasks.
type Registry struct {
	mu      sync.Mutex
	swarms  map[string]*Swarm
	agents  map[string]*Agent
	tasks   map[string]*Task
	journal Journal
	events  EventSink
}

func NewRegistry(journal Journal, events EventSink) *Registry {
	return &Registry{
		swarms:  make(map[string]*Swarm),
		agents:  make(map[string]*Agent),
		tasks:   make(map[string]*Task),
		journal: journal,
		events:  events,
	}
}

// CreateSwarm registers a new swarm with topology-specific structure.
func (r *Registry) CreateSwarm(topology Topology, capacity int) (Swarm, error) {
	structure, err := newStructure(topology)
	if err != nil {
		return Swarm{}, err
	}
	if capacity < 1 {
		capacity = 1
	}

	s := &Swarm{
		ID:        uuid.New().String(),
		Topology:  topology,
		Capacity:  capacity,
		Structure: structure,
		AgentIDs:  make(map[string]bool),
		TaskIDs:   make(map[string]bool),
		Status:    SwarmActive,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.swarms[s.ID] = s
	snapshot := cloneSwarm(s)
	r.mu.Unlock()

	r.journalSwarm(&snapshot)
	r.emit("swarm.initialized", map[string]any{
		"swarm_id": s.ID,
		"topology": string(topology),
		"capacity": capacity,
	})
	slog.Info("swarm created", "id", s.ID, "topology", topology, "capacity", capacity)

	return snapshot, nil
}

// DestroySwarm cancels in-progress member tasks, discards all member
// agents and deletes the swarm. In-flight subtask executions are not
// aborted; their completion bookkeeping tolerates the missing records.
func (r *Registry) DestroySwarm(id string) error {
	r.mu.Lock()
	s, ok := r.swarms[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("swarm %s: %w", id, ErrNotFound)
	}

	cancelled := 0
	var cancelledTasks []Task
	for taskID := range s.TaskIDs {
		t, ok := r.tasks[taskID]
		if !ok {
			continue
		}
		if t.Status == TaskPending || t.Status == TaskInProgress {
			t.Status = TaskCancelled
			cancelled++
			cancelledTasks = append(cancelledTasks, cloneTask(t))
		}
	}

	removedAgents := make([]string, 0, len(s.AgentIDs))
	for agentID := range s.AgentIDs {
		delete(r.agents, agentID)
		removedAgents = append(removedAgents, agentID)
	}

	s.Status = SwarmDestroyed
	s.AgentIDs = make(map[string]bool)
	delete(r.swarms, id)
	r.mu.Unlock()

	for i := range cancelledTasks {
		r.journalTask(&cancelledTasks[i])
	}
	for _, agentID := range removedAgents {
		if r.journal != nil {
			if err := r.journal.DeleteAgent(agentID); err != nil {
				slog.Warn("journal agent delete failed", "agent", agentID, "error", err)
			}
		}
		r.emit("agent.removed", map[string]any{
			"agent_id": agentID,
			"swarm_id": id,
			"reason":   "swarm destroyed",
		})
	}
	if r.journal != nil {
		if err := r.journal.DeleteSwarm(id); err != nil {
			slog.Warn("journal swarm delete failed", "swarm", id, "error", err)
		}
	}

	r.emit("swarm.destroyed", map[string]any{
		"swarm_id":        id,
		"agents_removed":  len(removedAgents),
		"tasks_cancelled": cancelled,
	})
	slog.Info("swarm destroyed", "id", id, "agents_removed", len(removedAgents), "tasks_cancelled", cancelled)

	return nil
}

// Spawn adds an agent to a swarm. Capabilities default from the role
// table when none are given. If membership now exceeds capacity the
// rebalancer runs synchronously before Spawn returns; the new agent
// itself is exempt from that pass.
func (r *Registry) Spawn(swarmID, role string, capabilities []string) (Agent, error) {
	caps := DefaultCapabilities(role)
	if len(capabilities) > 0 {
		caps = make(map[string]bool, len(capabilities))
		for _, c := range capabilities {
			caps[c] = true
		}
	}

	a := &Agent{
		ID:           uuid.New().String(),
		SwarmID:      swarmID,
		Role:         role,
		Capabilities: caps,
		Status:       AgentIdle,
		SuccessRate:  1.0,
		CreatedAt:    time.Now(),
	}

	r.mu.Lock()
	s, ok := r.swarms[swarmID]
	if !ok {
		r.mu.Unlock()
		return Agent{}, fmt.Errorf("swarm %s: %w", swarmID, ErrNotFound)
	}

	r.agents[a.ID] = a
	s.AgentIDs[a.ID] = true
	s.Structure.addAgent(s.Topology, a.ID)

	var evicted []string
	if len(s.AgentIDs) > s.Capacity {
		evicted = r.rebalance(s, a.ID)
	}
	snapshot := cloneAgent(a)
	swarmSnapshot := cloneSwarm(s)
	r.mu.Unlock()

	r.journalAgent(&snapshot)
	r.journalSwarm(&swarmSnapshot)
	r.emit("agent.spawned", map[string]any{
		"agent_id": a.ID,
		"swarm_id": swarmID,
		"role":     role,
	})
	for _, id := range evicted {
		if r.journal != nil {
			if err := r.journal.DeleteAgent(id); err != nil {
				slog.Warn("journal agent delete failed", "agent", id, "error", err)
			}
		}
		r.emit("agent.removed", map[string]any{
			"agent_id": id,
			"swarm_id": swarmID,
			"reason":   "rebalanced",
		})
	}
	slog.Info("agent spawned", "id", a.ID, "swarm", swarmID, "role", role, "evicted", len(evicted))

	return snapshot, nil
}

// RecordOutcome folds one finished subtask into the agent's performance
// history. A missing agent is a no-op: the record may have been evicted
// or its swarm destroyed while the subtask was executing.
func (r *Registry) RecordOutcome(agentID string, durationMs int64, success bool) {
	r.mu.Lock()
	a, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return
	}

	n := float64(a.CompletedTasks)
	a.MeanDurationMs = (a.MeanDurationMs*n + float64(durationMs)) / (n + 1)
	if !success {
		// Failures decay the rate toward zero; successes leave it as is.
		a.SuccessRate = a.SuccessRate * n / (n + 1)
	}
	a.CompletedTasks++
	snapshot := cloneAgent(a)
	r.mu.Unlock()

	r.journalAgent(&snapshot)
}

// AssignAgent marks an idle agent busy on a subtask. Returns false when
// the agent is missing or already busy, so a racing caller cannot
// double-book it.
func (r *Registry) AssignAgent(agentID, subtaskID string) bool {
	r.mu.Lock()
	a, ok := r.agents[agentID]
	if !ok || a.Status != AgentIdle {
		r.mu.Unlock()
		return false
	}
	a.Status = AgentBusy
	a.CurrentSubtaskID = subtaskID
	snapshot := cloneAgent(a)
	r.mu.Unlock()

	r.journalAgent(&snapshot)
	return true
}

// ReleaseAgent returns an agent to idle. Missing agents are ignored.
func (r *Registry) ReleaseAgent(agentID string) {
	r.mu.Lock()
	a, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return
	}
	a.Status = AgentIdle
	a.CurrentSubtaskID = ""
	snapshot := cloneAgent(a)
	r.mu.Unlock()

	r.journalAgent(&snapshot)
}

// CreateTask registers a pending task with its swarm.
func (r *Registry) CreateTask(t *Task) error {
	r.mu.Lock()
	s, ok := r.swarms[t.SwarmID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("swarm %s: %w", t.SwarmID, ErrNotFound)
	}
	stored := cloneTask(t)
	r.tasks[t.ID] = &stored
	s.TaskIDs[t.ID] = true
	swarmSnapshot := cloneSwarm(s)
	r.mu.Unlock()

	r.journalTask(t)
	r.journalSwarm(&swarmSnapshot)
	return nil
}

// BeginTask moves a pending task to in_progress and stamps its start time.
func (r *Registry) BeginTask(taskID string) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if t.Status != TaskPending {
		r.mu.Unlock()
		return fmt.Errorf("task %s is %s, expected pending", taskID, t.Status)
	}
	now := time.Now()
	t.Status = TaskInProgress
	t.StartedAt = &now
	snapshot := cloneTask(t)
	r.mu.Unlock()

	r.journalTask(&snapshot)
	return nil
}

// CompleteTask freezes results on an in-progress task and stamps its end
// time. Tasks cancelled mid-flight (or belonging to a destroyed swarm)
// are left as they are: this is post-completion bookkeeping and must
// tolerate records changing underneath the executing subtasks.
func (r *Registry) CompleteTask(taskID string, agentIDs []string, results []ExecutionResult) (Task, bool) {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok || t.Status != TaskInProgress {
		var snapshot Task
		if ok {
			snapshot = cloneTask(t)
		}
		r.mu.Unlock()
		return snapshot, false
	}
	now := time.Now()
	t.Status = TaskCompleted
	t.CompletedAt = &now
	t.AgentIDs = append([]string(nil), agentIDs...)
	t.Results = append([]ExecutionResult(nil), results...)
	var swarmSnapshot *Swarm
	if s, ok := r.swarms[t.SwarmID]; ok {
		s.TasksCompleted++
		clone := cloneSwarm(s)
		swarmSnapshot = &clone
	}
	snapshot := cloneTask(t)
	r.mu.Unlock()

	r.journalTask(&snapshot)
	if swarmSnapshot != nil {
		r.journalSwarm(swarmSnapshot)
	}
	return snapshot, true
}

// GetSwarm returns a snapshot of a swarm with derived metrics.
func (r *Registry) GetSwarm(id string) (Swarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.swarms[id]
	if !ok {
		return Swarm{}, fmt.Errorf("swarm %s: %w", id, ErrNotFound)
	}
	snapshot := cloneSwarm(s)
	snapshot.Metrics = r.swarmMetricsLocked(s)
	return snapshot, nil
}

// ListSwarms returns snapshots of all registered swarms.
func (r *Registry) ListSwarms() []Swarm {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Swarm, 0, len(r.swarms))
	for _, s := range r.swarms {
		snapshot := cloneSwarm(s)
		snapshot.Metrics = r.swarmMetricsLocked(s)
		out = append(out, snapshot)
	}
	return out
}

func (r *Registry) GetAgent(id string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return cloneAgent(a), nil
}

// ListAgents returns snapshots of a swarm's members, or of every agent
// when swarmID is empty.
func (r *Registry) ListAgents(swarmID string) []Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if swarmID != "" && a.SwarmID != swarmID {
			continue
		}
		out = append(out, cloneAgent(a))
	}
	return out
}

// IdleAgents returns snapshots of a swarm's idle members in creation order.
func (r *Registry) IdleAgents(swarmID string) []Agent {
	agents := r.ListAgents(swarmID)
	idle := agents[:0]
	for _, a := range agents {
		if a.Status == AgentIdle {
			idle = append(idle, a)
		}
	}
	sortAgentsByAge(idle)
	return idle
}

func (r *Registry) GetTask(id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return cloneTask(t), nil
}

// ListTasks returns snapshots of all registered tasks.
func (r *Registry) ListTasks() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, cloneTask(t))
	}
	return out
}

// SwarmLoad reports the fraction of a swarm's members that are busy.
// Unknown swarms report zero load.
func (r *Registry) SwarmLoad(swarmID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.swarms[swarmID]
	if !ok {
		return 0
	}
	return r.swarmLoadLocked(s)
}

func (r *Registry) swarmLoadLocked(s *Swarm) float64 {
	if len(s.AgentIDs) == 0 {
		return 0
	}
	busy := 0
	for id := range s.AgentIDs {
		if a, ok := r.agents[id]; ok && a.Status == AgentBusy {
			busy++
		}
	}
	return float64(busy) / float64(len(s.AgentIDs))
}

func (r *Registry) swarmMetricsLocked(s *Swarm) SwarmMetrics {
	m := SwarmMetrics{Load: r.swarmLoadLocked(s)}
	minutes := time.Since(s.CreatedAt).Minutes()
	if minutes > 0 {
		m.Throughput = float64(s.TasksCompleted) / minutes
	}
	return m
}

func (r *Registry) journalSwarm(s *Swarm) {
	if r.journal == nil {
		return
	}
	if err := r.journal.SaveSwarm(s); err != nil {
		slog.Warn("journal swarm save failed", "swarm", s.ID, "error", err)
	}
}

func (r *Registry) journalAgent(a *Agent) {
	if r.journal == nil {
		return
	}
	if err := r.journal.SaveAgent(a); err != nil {
		slog.Warn("journal agent save failed", "agent", a.ID, "error", err)
	}
}

func (r *Registry) journalTask(t *Task) {
	if r.journal == nil {
		return
	}
	if err := r.journal.SaveTask(t); err != nil {
		slog.Warn("journal task save failed", "task", t.ID, "error", err)
	}
}

func (r *Registry) emit(event string, fields map[string]any) {
	if r.events == nil {
		return
	}
	r.events.Emit(event, fields)
}
