package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mtzanidakis/apiary/internal/swarm"
)

func (s *Store) SaveTask(t *swarm.Task) error {
	subtasks, err := json.Marshal(t.Subtasks)
	if err != nil {
		return fmt.Errorf("marshal subtasks: %w", err)
	}
	agentIDs, _ := json.Marshal(t.AgentIDs)
	results, _ := json.Marshal(t.Results)

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, swarm_id, description, priority, strategy, status, subtasks, agent_ids, results, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			agent_ids = excluded.agent_ids,
			results = excluded.results,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		t.ID, t.SwarmID, t.Description, t.Priority, string(t.Strategy), string(t.Status),
		string(subtasks), string(agentIDs), string(results), t.StartedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(id string) (*swarm.Task, error) {
	row := s.db.QueryRow(`SELECT id, swarm_id, description, priority, strategy, status, subtasks, agent_ids, results, started_at, completed_at FROM tasks WHERE id = ?`, id)
	t, err := scanStoredTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasks(swarmID string) ([]swarm.Task, error) {
	query := `SELECT id, swarm_id, description, priority, strategy, status, subtasks, agent_ids, results, started_at, completed_at FROM tasks`
	var args []any
	if swarmID != "" {
		query += ` WHERE swarm_id = ?`
		args = append(args, swarmID)
	}
	query += ` ORDER BY started_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []swarm.Task
	for rows.Next() {
		t, err := scanStoredTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func scanStoredTask(scanner interface{ Scan(dest ...any) error }) (*swarm.Task, error) {
	t := &swarm.Task{}
	var strategy, status, subtasks string
	var agentIDs, results sql.NullString
	err := scanner.Scan(&t.ID, &t.SwarmID, &t.Description, &t.Priority, &strategy, &status,
		&subtasks, &agentIDs, &results, &t.StartedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	t.Strategy = swarm.Strategy(strategy)
	t.Status = swarm.TaskStatus(status)
	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		return nil, fmt.Errorf("unmarshal subtasks: %w", err)
	}
	if agentIDs.Valid {
		_ = json.Unmarshal([]byte(agentIDs.String), &t.AgentIDs)
	}
	if results.Valid {
		_ = json.Unmarshal([]byte(results.String), &t.Results)
	}
	return t, nil
}
