package swarm

import "sort"

// Snapshot copies handed out by the registry. Callers get value copies
// so nothing outside the registry can mutate a live record.

func cloneSwarm(s *Swarm) Swarm {
	out := *s
	out.AgentIDs = cloneSet(s.AgentIDs)
	out.TaskIDs = cloneSet(s.TaskIDs)
	if s.Structure != nil {
		st := *s.Structure
		st.Levels = cloneIntMap(s.Structure.Levels)
		st.Branches = cloneStringMap(s.Structure.Branches)
		if s.Structure.Adjacency != nil {
			st.Adjacency = make(map[string][]string, len(s.Structure.Adjacency))
			for k, v := range s.Structure.Adjacency {
				st.Adjacency[k] = append([]string(nil), v...)
			}
		}
		st.Sequence = append([]string(nil), s.Structure.Sequence...)
		st.SpokeIDs = append([]string(nil), s.Structure.SpokeIDs...)
		out.Structure = &st
	}
	return out
}

func cloneAgent(a *Agent) Agent {
	out := *a
	out.Capabilities = cloneSet(a.Capabilities)
	return out
}

func cloneTask(t *Task) Task {
	out := *t
	out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	for i := range out.Subtasks {
		out.Subtasks[i].DependsOn = append([]string(nil), t.Subtasks[i].DependsOn...)
		out.Subtasks[i].RequiredCapabilities = append([]string(nil), t.Subtasks[i].RequiredCapabilities...)
	}
	out.AgentIDs = append([]string(nil), t.AgentIDs...)
	out.Results = append([]ExecutionResult(nil), t.Results...)
	return out
}

func cloneSet(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortAgentsByAge(agents []Agent) {
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
}
