package orchestrator

import (
	"fmt"

	"github.com/mtzanidakis/apiary/internal/swarm"
)

// dependencyGroups partitions subtasks into execution rounds: a subtask
// is ready once every id it depends on was processed in an earlier
// round. Returns groups of indexes into the input slice, preserving
// decomposition order within each group. A round that makes no progress
// while subtasks remain means the graph is cyclic (or references unknown
// ids) and fails instead of looping.
func dependencyGroups(subtasks []swarm.Subtask) ([][]int, error) {
	processed := make(map[string]bool, len(subtasks))
	remaining := make([]int, len(subtasks))
	for i := range subtasks {
		remaining[i] = i
	}

	var groups [][]int
	for len(remaining) > 0 {
		var ready, blocked []int
		for _, idx := range remaining {
			if depsSatisfied(subtasks[idx], processed) {
				ready = append(ready, idx)
			} else {
				blocked = append(blocked, idx)
			}
		}

		if len(ready) == 0 {
			return nil, fmt.Errorf("%w: %d subtasks cannot become ready", ErrCyclicDependency, len(blocked))
		}

		// Mark after the scan so same-round subtasks cannot satisfy
		// each other's dependencies.
		for _, idx := range ready {
			processed[subtasks[idx].ID] = true
		}

		groups = append(groups, ready)
		remaining = blocked
	}

	return groups, nil
}

func depsSatisfied(st swarm.Subtask, processed map[string]bool) bool {
	for _, dep := range st.DependsOn {
		if !processed[dep] {
			return false
		}
	}
	return true
}
