package orchestrator

import (
	"errors"
	"testing"

	"github.com/mtzanidakis/apiary/internal/swarm"
)

func subtaskGraph(deps map[string][]string, order ...string) []swarm.Subtask {
	subtasks := make([]swarm.Subtask, 0, len(order))
	for _, id := range order {
		subtasks = append(subtasks, swarm.Subtask{ID: id, DependsOn: deps[id]})
	}
	return subtasks
}

func TestDependencyGroupsFanOut(t *testing.T) {
	subtasks := subtaskGraph(map[string][]string{
		"B": {"A"},
		"C": {"A"},
	}, "A", "B", "C")

	groups, err := dependencyGroups(subtasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := [][]int{{0}, {1, 2}}
	if len(groups) != len(expected) {
		t.Fatalf("expected %d groups, got %d", len(expected), len(groups))
	}
	for i := range expected {
		if len(groups[i]) != len(expected[i]) {
			t.Fatalf("group %d: expected %v, got %v", i, expected[i], groups[i])
		}
		for j := range expected[i] {
			if groups[i][j] != expected[i][j] {
				t.Errorf("group %d: expected %v, got %v", i, expected[i], groups[i])
			}
		}
	}
}

func TestDependencyGroupsDiamond(t *testing.T) {
	subtasks := subtaskGraph(map[string][]string{
		"B": {"A"},
		"C": {"A"},
		"D": {"B", "C"},
	}, "A", "B", "C", "D")

	groups, err := dependencyGroups(subtasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 rounds for diamond graph, got %d", len(groups))
	}
	if len(groups[2]) != 1 || groups[2][0] != 3 {
		t.Errorf("expected D alone in the last round, got %v", groups[2])
	}
}

func TestDependencyGroupsIndependent(t *testing.T) {
	subtasks := subtaskGraph(nil, "A", "B", "C")

	groups, err := dependencyGroups(subtasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 3 {
		t.Fatalf("expected single round of 3, got %v", groups)
	}
}

func TestDependencyGroupsCycle(t *testing.T) {
	subtasks := subtaskGraph(map[string][]string{
		"A": {"B"},
		"B": {"A"},
	}, "A", "B")

	if _, err := dependencyGroups(subtasks); !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestDependencyGroupsUnknownDependency(t *testing.T) {
	subtasks := subtaskGraph(map[string][]string{
		"A": {"ghost"},
	}, "A")

	// An unknown id can never be satisfied: same failure as a cycle.
	if _, err := dependencyGroups(subtasks); !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestDependencyGroupsEmpty(t *testing.T) {
	groups, err := dependencyGroups(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %v", groups)
	}
}
