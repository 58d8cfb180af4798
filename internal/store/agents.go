package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mtzanidakis/apiary/internal/swarm"
)

func (s *Store) SaveAgent(a *swarm.Agent) error {
	caps, _ := json.Marshal(setToList(a.Capabilities))

	_, err := s.db.Exec(`
		INSERT INTO agents (id, swarm_id, role, capabilities, status, current_subtask_id, completed_tasks, mean_duration_ms, success_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_subtask_id = excluded.current_subtask_id,
			completed_tasks = excluded.completed_tasks,
			mean_duration_ms = excluded.mean_duration_ms,
			success_rate = excluded.success_rate`,
		a.ID, a.SwarmID, a.Role, string(caps), string(a.Status), a.CurrentSubtaskID,
		a.CompletedTasks, a.MeanDurationMs, a.SuccessRate, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(id string) (*swarm.Agent, error) {
	row := s.db.QueryRow(`SELECT id, swarm_id, role, capabilities, status, current_subtask_id, completed_tasks, mean_duration_ms, success_rate, created_at FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgents(swarmID string) ([]swarm.Agent, error) {
	query := `SELECT id, swarm_id, role, capabilities, status, current_subtask_id, completed_tasks, mean_duration_ms, success_rate, created_at FROM agents`
	var args []any
	if swarmID != "" {
		query += ` WHERE swarm_id = ?`
		args = append(args, swarmID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []swarm.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgent(id string) error {
	_, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	return err
}

func scanAgent(scanner interface{ Scan(dest ...any) error }) (*swarm.Agent, error) {
	a := &swarm.Agent{}
	var caps, status string
	var currentSubtask sql.NullString
	err := scanner.Scan(&a.ID, &a.SwarmID, &a.Role, &caps, &status, &currentSubtask,
		&a.CompletedTasks, &a.MeanDurationMs, &a.SuccessRate, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Capabilities = listToSet(caps)
	a.Status = swarm.AgentStatus(status)
	a.CurrentSubtaskID = currentSubtask.String
	return a, nil
}
