package orchestrator

import "sync"

// Metrics keeps running aggregates over completed tasks.
type Metrics struct {
	mu             sync.Mutex
	completedTasks int
	meanDurationMs float64
}

type MetricsSnapshot struct {
	CompletedTasks int     `json:"completed_tasks"`
	MeanDurationMs float64 `json:"mean_duration_ms"`
}

// RecordCompletion folds one task duration into the running mean, using
// the same incremental formula as agent duration accounting.
func (m *Metrics) RecordCompletion(durationMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := float64(m.completedTasks)
	m.meanDurationMs = (m.meanDurationMs*n + float64(durationMs)) / (n + 1)
	m.completedTasks++
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		CompletedTasks: m.completedTasks,
		MeanDurationMs: m.meanDurationMs,
	}
}
