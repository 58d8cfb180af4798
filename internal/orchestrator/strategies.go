package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mtzanidakis/apiary/internal/match"
	"github.com/mtzanidakis/apiary/internal/swarm"
)

// runParallel snapshots idle agents once, greedily assigns every subtask
// in decomposition order, then launches all assigned subtasks at once.
// A rejection in one never cancels its siblings; results come back in
// subtask order regardless of completion order.
func (o *Orchestrator) runParallel(ctx context.Context, swarmID string, subtasks []swarm.Subtask) ([]swarm.ExecutionResult, []string, error) {
	results := make([]swarm.ExecutionResult, len(subtasks))
	indexes := make([]int, len(subtasks))
	for i := range subtasks {
		indexes[i] = i
	}
	agentIDs := o.runGroup(ctx, swarmID, subtasks, indexes, results)
	return results, agentIDs, nil
}

// runSequential re-queries idle agents before each subtask so releases
// from earlier subtasks are visible, then executes one at a time.
func (o *Orchestrator) runSequential(ctx context.Context, swarmID string, subtasks []swarm.Subtask) ([]swarm.ExecutionResult, []string, error) {
	results := make([]swarm.ExecutionResult, len(subtasks))
	var agentIDs []string

	for i, st := range subtasks {
		agent, ok := o.assignBest(o.registry.IdleAgents(swarmID), st)
		if !ok {
			results[i] = unassignedResult(st)
			continue
		}
		agentIDs = append(agentIDs, agent.ID)
		results[i] = o.executeSubtask(ctx, agent, st)
	}

	return results, agentIDs, nil
}

// runBalanced executes dependency-ready groups one after another, each
// group with parallel semantics. Agents released by an earlier group are
// available again for later ones.
func (o *Orchestrator) runBalanced(ctx context.Context, swarmID string, subtasks []swarm.Subtask) ([]swarm.ExecutionResult, []string, error) {
	groups, err := dependencyGroups(subtasks)
	if err != nil {
		return nil, nil, err
	}

	results := make([]swarm.ExecutionResult, len(subtasks))
	var agentIDs []string
	for _, group := range groups {
		agentIDs = append(agentIDs, o.runGroup(ctx, swarmID, subtasks, group, results)...)
	}

	return results, agentIDs, nil
}

// runGroup assigns and concurrently executes the subtasks at the given
// indexes, writing each result to its original position. Assignment is
// greedy over a single idle snapshot: an agent picked for one subtask is
// out of the candidate pool for the rest of the pass.
func (o *Orchestrator) runGroup(ctx context.Context, swarmID string, subtasks []swarm.Subtask, indexes []int, results []swarm.ExecutionResult) []string {
	type assignment struct {
		idx   int
		agent swarm.Agent
	}

	candidates := o.registry.IdleAgents(swarmID)
	var assigned []assignment
	var agentIDs []string

	for _, idx := range indexes {
		st := subtasks[idx]
		agent, ok := o.assignBest(candidates, st)
		if !ok {
			results[idx] = unassignedResult(st)
			continue
		}
		candidates = withoutAgent(candidates, agent.ID)
		assigned = append(assigned, assignment{idx: idx, agent: agent})
		agentIDs = append(agentIDs, agent.ID)
	}

	var wg sync.WaitGroup
	for _, a := range assigned {
		wg.Add(1)
		go func(a assignment) {
			defer wg.Done()
			// Distinct indexes, no shared writes.
			results[a.idx] = o.executeSubtask(ctx, a.agent, subtasks[a.idx])
		}(a)
	}
	wg.Wait()

	return agentIDs
}

// assignBest picks the best-matching candidate and marks it busy. The
// registry re-checks idleness, so a candidate snatched by a concurrent
// pass falls through to the next best.
func (o *Orchestrator) assignBest(candidates []swarm.Agent, st swarm.Subtask) (swarm.Agent, bool) {
	for len(candidates) > 0 {
		agent, ok := match.FindBestAgent(candidates, st)
		if !ok {
			return swarm.Agent{}, false
		}
		if o.registry.AssignAgent(agent.ID, st.ID) {
			return agent, true
		}
		candidates = withoutAgent(candidates, agent.ID)
	}
	return swarm.Agent{}, false
}

// executeSubtask runs one subtask on its assigned agent, releases the
// agent, and records the outcome. Execution failure becomes a rejected
// result; it never propagates as an error.
func (o *Orchestrator) executeSubtask(ctx context.Context, agent swarm.Agent, st swarm.Subtask) swarm.ExecutionResult {
	started := time.Now()
	output, err := o.exec.Execute(ctx, agent, st)
	durationMs := time.Since(started).Milliseconds()

	o.registry.ReleaseAgent(agent.ID)
	o.registry.RecordOutcome(agent.ID, durationMs, err == nil)

	res := swarm.ExecutionResult{
		SubtaskID:  st.ID,
		DurationMs: durationMs,
	}
	if err != nil {
		res.Outcome = swarm.OutcomeRejected
		res.Error = err.Error()
		return res
	}
	res.Outcome = swarm.OutcomeFulfilled
	res.Output = output
	return res
}

func unassignedResult(st swarm.Subtask) swarm.ExecutionResult {
	return swarm.ExecutionResult{
		SubtaskID: st.ID,
		Outcome:   swarm.OutcomeUnassigned,
		Error:     ErrUnassignable.Error(),
	}
}

func withoutAgent(agents []swarm.Agent, id string) []swarm.Agent {
	out := make([]swarm.Agent, 0, len(agents))
	for _, a := range agents {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
