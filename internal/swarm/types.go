package swarm

import "time"

type Topology string

const (
	TopologyHierarchical Topology = "hierarchical"
	TopologyMesh         Topology = "mesh"
	TopologyRing         Topology = "ring"
	TopologyStar         Topology = "star"
)

type Strategy string

const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
	StrategyBalanced   Strategy = "balanced"
	StrategyAdaptive   Strategy = "adaptive"
	StrategyAuto       Strategy = "auto"
)

type SwarmStatus string

const (
	SwarmActive    SwarmStatus = "active"
	SwarmDestroyed SwarmStatus = "destroyed"
)

type AgentStatus string

const (
	AgentIdle AgentStatus = "idle"
	AgentBusy AgentStatus = "busy"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Outcome classifies a single subtask execution.
type Outcome string

const (
	OutcomeFulfilled Outcome = "fulfilled"
	OutcomeRejected  Outcome = "rejected"
	// OutcomeUnassigned marks a subtask that had no capable idle agent
	// at assignment time. Recorded instead of dropping the entry so a
	// completed task always carries one result per subtask.
	OutcomeUnassigned Outcome = "unassigned"
)

// SwarmMetrics are derived aggregates reported with swarm status.
type SwarmMetrics struct {
	Load       float64 `json:"load"`       // busy members / total members
	Throughput float64 `json:"throughput"` // completed tasks per minute since creation
}

type Swarm struct {
	ID             string              `json:"id"`
	Topology       Topology            `json:"topology"`
	Capacity       int                 `json:"capacity"`
	Structure      *TopologyStructure  `json:"structure,omitempty"`
	AgentIDs       map[string]bool     `json:"agent_ids"`
	TaskIDs        map[string]bool     `json:"task_ids"`
	Status         SwarmStatus         `json:"status"`
	TasksCompleted int                 `json:"tasks_completed"`
	Metrics        SwarmMetrics        `json:"metrics"`
	CreatedAt      time.Time           `json:"created_at"`
}

type Agent struct {
	ID               string          `json:"id"`
	SwarmID          string          `json:"swarm_id"`
	Role             string          `json:"role"`
	Capabilities     map[string]bool `json:"capabilities"`
	Status           AgentStatus     `json:"status"`
	CurrentSubtaskID string          `json:"current_subtask_id,omitempty"`
	CompletedTasks   int             `json:"completed_tasks"`
	MeanDurationMs   float64         `json:"mean_duration_ms"`
	SuccessRate      float64         `json:"success_rate"`
	CreatedAt        time.Time       `json:"created_at"`
}

// HasCapability reports whether the agent's capability set contains c.
func (a *Agent) HasCapability(c string) bool {
	return a.Capabilities[c]
}

type Task struct {
	ID          string            `json:"id"`
	SwarmID     string            `json:"swarm_id"`
	Description string            `json:"description"`
	Priority    int               `json:"priority"`
	Strategy    Strategy          `json:"strategy"`
	Status      TaskStatus        `json:"status"`
	Subtasks    []Subtask         `json:"subtasks"`
	AgentIDs    []string          `json:"agent_ids"`
	Results     []ExecutionResult `json:"results"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Subtask is immutable after decomposition.
type Subtask struct {
	ID                   string   `json:"id"`
	TaskID               string   `json:"task_id"`
	Description          string   `json:"description"`
	Type                 string   `json:"type"`
	Priority             int      `json:"priority"`
	DependsOn            []string `json:"depends_on,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities"`
	EstimatedDurationMs  int64    `json:"estimated_duration_ms"`
}

type ExecutionResult struct {
	SubtaskID  string  `json:"subtask_id"`
	Outcome    Outcome `json:"outcome"`
	Output     string  `json:"output,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}
