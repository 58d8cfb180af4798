// Package match scores agents against subtasks and picks the best
// available candidate.
package match

import "github.com/mtzanidakis/apiary/internal/swarm"

// Score rates how well an agent fits a subtask:
//
//	+0.2 per required capability the agent holds
//	+successRate * 0.3
//	+(1 - meanDuration/10000) * 0.2  (negative for historically slow agents)
//	+0.3 when the agent's role equals the subtask type
func Score(a swarm.Agent, st swarm.Subtask) float64 {
	score := 0.0
	for _, required := range st.RequiredCapabilities {
		if a.HasCapability(required) {
			score += 0.2
		}
	}
	score += a.SuccessRate * 0.3
	score += (1 - a.MeanDurationMs/10000) * 0.2
	if a.Role == st.Type {
		score += 0.3
	}
	return score
}

// FindBestAgent returns the highest-scoring candidate. Ties go to the
// earlier candidate. The second return is false when the candidate set
// is empty: no match is a scheduling condition, not an error.
func FindBestAgent(candidates []swarm.Agent, st swarm.Subtask) (swarm.Agent, bool) {
	if len(candidates) == 0 {
		return swarm.Agent{}, false
	}

	best := candidates[0]
	bestScore := Score(best, st)
	for _, c := range candidates[1:] {
		if s := Score(c, st); s > bestScore {
			best = c
			bestScore = s
		}
	}
	return best, true
}
