package swarm

import "log/slog"

// rebalance evicts idle low performers until the swarm fits its capacity
// again. The agent whose spawn triggered the pass is exempt, and busy
// agents are never evicted; if no other idle member remains the swarm
// stays temporarily over capacity. Caller holds r.mu; journal and event
// emission for evicted ids happen after the lock is released.
func (r *Registry) rebalance(s *Swarm, exemptID string) []string {
	var evicted []string

	for len(s.AgentIDs) > s.Capacity {
		victim := r.lowestIdleScorerLocked(s, exemptID)
		if victim == nil {
			break
		}

		delete(r.agents, victim.ID)
		delete(s.AgentIDs, victim.ID)
		s.Structure.removeAgent(s.Topology, victim.ID)
		evicted = append(evicted, victim.ID)

		slog.Info("agent evicted",
			"agent", victim.ID,
			"swarm", s.ID,
			"success_rate", victim.SuccessRate,
			"completed", victim.CompletedTasks)
	}

	return evicted
}

// lowestIdleScorerLocked scores each idle member by successRate times
// completed-task count and returns the lowest, or nil when every
// eligible member is busy.
func (r *Registry) lowestIdleScorerLocked(s *Swarm, exemptID string) *Agent {
	var victim *Agent
	victimScore := 0.0

	for id := range s.AgentIDs {
		if id == exemptID {
			continue
		}
		a, ok := r.agents[id]
		if !ok || a.Status != AgentIdle {
			continue
		}
		score := a.SuccessRate * float64(a.CompletedTasks)
		if victim == nil || score < victimScore {
			victim = a
			victimScore = score
		}
	}

	return victim
}
