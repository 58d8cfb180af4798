// Package orchestrator drives tasks through their state machine: it
// decomposes a description into subtasks, picks an execution strategy,
// matches subtasks to agents and records outcomes back into the
// registry and metrics.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/apiary/internal/plan"
	"github.com/mtzanidakis/apiary/internal/swarm"
)

type Orchestrator struct {
	registry        *swarm.Registry
	exec            Executor
	metrics         *Metrics
	events          swarm.EventSink
	defaultStrategy swarm.Strategy
}

func New(reg *swarm.Registry, exec Executor, events swarm.EventSink, defaultStrategy swarm.Strategy) *Orchestrator {
	if defaultStrategy == "" {
		defaultStrategy = swarm.StrategyAuto
	}
	return &Orchestrator{
		registry:        reg,
		exec:            exec,
		metrics:         &Metrics{},
		events:          events,
		defaultStrategy: defaultStrategy,
	}
}

// TaskSpec is a task submission. Subtasks may be supplied by an external
// planner; when empty the built-in decomposer runs on Description.
type TaskSpec struct {
	SwarmID     string
	Description string
	Priority    int
	Strategy    string
	Subtasks    []swarm.Subtask
}

// ParseStrategy validates a strategy name; empty resolves later to the
// configured default.
func ParseStrategy(s string) (swarm.Strategy, error) {
	switch swarm.Strategy(s) {
	case "", swarm.StrategyParallel, swarm.StrategySequential, swarm.StrategyBalanced,
		swarm.StrategyAdaptive, swarm.StrategyAuto:
		return swarm.Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Run executes a task to completion and returns the final record. The
// task always reaches completed (unless its swarm was destroyed while it
// ran): per-subtask failures are captured in the results, never
// propagated as an error. Callers must inspect the results to learn
// per-subtask success.
func (o *Orchestrator) Run(ctx context.Context, spec TaskSpec) (swarm.Task, error) {
	strategy, err := ParseStrategy(spec.Strategy)
	if err != nil {
		return swarm.Task{}, err
	}
	if strategy == "" {
		strategy = o.defaultStrategy
	}

	if _, err := o.registry.GetSwarm(spec.SwarmID); err != nil {
		return swarm.Task{}, err
	}

	taskID := uuid.New().String()
	subtasks := spec.Subtasks
	if len(subtasks) == 0 {
		subtasks = plan.Decompose(taskID, spec.Description, spec.Priority)
	} else {
		for i := range subtasks {
			if subtasks[i].ID == "" {
				subtasks[i].ID = uuid.New().String()
			}
			subtasks[i].TaskID = taskID
		}
	}

	effective := o.effectiveStrategy(strategy, spec.SwarmID, subtasks)

	// Validate the dependency graph up front so a cyclic submission
	// fails while the task is still pending.
	if effective == swarm.StrategyBalanced {
		if _, err := dependencyGroups(subtasks); err != nil {
			return swarm.Task{}, err
		}
	}

	task := &swarm.Task{
		ID:          taskID,
		SwarmID:     spec.SwarmID,
		Description: spec.Description,
		Priority:    spec.Priority,
		Strategy:    strategy,
		Status:      swarm.TaskPending,
		Subtasks:    subtasks,
	}
	if err := o.registry.CreateTask(task); err != nil {
		return swarm.Task{}, err
	}

	o.emit("task.orchestrated", map[string]any{
		"task_id":  taskID,
		"swarm_id": spec.SwarmID,
		"strategy": string(effective),
		"subtasks": len(subtasks),
	})

	if err := o.registry.BeginTask(taskID); err != nil {
		return swarm.Task{}, err
	}
	started := time.Now()

	slog.Info("task started", "id", taskID, "swarm", spec.SwarmID, "strategy", effective, "subtasks", len(subtasks))

	results, agentIDs, err := o.execute(ctx, effective, spec.SwarmID, subtasks)
	if err != nil {
		return swarm.Task{}, err
	}

	completed, ok := o.registry.CompleteTask(taskID, agentIDs, results)
	if !ok {
		// Cancelled mid-flight (swarm destroyed). Bookkeeping only.
		slog.Info("task finished after cancellation", "id", taskID)
		return completed, nil
	}

	durationMs := time.Since(started).Milliseconds()
	o.metrics.RecordCompletion(durationMs)

	fulfilled := 0
	for _, res := range results {
		if res.Outcome == swarm.OutcomeFulfilled {
			fulfilled++
		}
	}
	o.emit("task.completed", map[string]any{
		"task_id":     taskID,
		"swarm_id":    spec.SwarmID,
		"duration_ms": durationMs,
		"subtasks":    len(results),
		"fulfilled":   fulfilled,
	})
	slog.Info("task completed", "id", taskID, "duration_ms", durationMs, "fulfilled", fulfilled, "total", len(results))

	return completed, nil
}

func (o *Orchestrator) execute(ctx context.Context, strategy swarm.Strategy, swarmID string, subtasks []swarm.Subtask) ([]swarm.ExecutionResult, []string, error) {
	switch strategy {
	case swarm.StrategyParallel:
		return o.runParallel(ctx, swarmID, subtasks)
	case swarm.StrategySequential:
		return o.runSequential(ctx, swarmID, subtasks)
	case swarm.StrategyBalanced:
		return o.runBalanced(ctx, swarmID, subtasks)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// effectiveStrategy resolves adaptive and auto to a concrete strategy.
func (o *Orchestrator) effectiveStrategy(strategy swarm.Strategy, swarmID string, subtasks []swarm.Subtask) swarm.Strategy {
	switch strategy {
	case swarm.StrategyAdaptive:
		edges := 0
		for _, st := range subtasks {
			edges += len(st.DependsOn)
		}
		parallelizability := 0.5
		if len(subtasks) > 1 && edges == 0 {
			parallelizability = 1.0
		}
		dependencyRatio := float64(edges) / float64(max(1, len(subtasks)))
		switch {
		case parallelizability > 0.7:
			return swarm.StrategyParallel
		case dependencyRatio > 0.5:
			return swarm.StrategySequential
		default:
			return swarm.StrategyBalanced
		}
	case swarm.StrategyAuto:
		load := o.registry.SwarmLoad(swarmID)
		switch {
		case load < 0.3:
			return swarm.StrategyParallel
		case load > 0.7:
			return swarm.StrategySequential
		default:
			return swarm.StrategyBalanced
		}
	default:
		return strategy
	}
}

// Metrics exposes the orchestrator's running aggregates.
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.Snapshot()
}

func (o *Orchestrator) emit(event string, fields map[string]any) {
	if o.events == nil {
		return
	}
	o.events.Emit(event, fields)
}
