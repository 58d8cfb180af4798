package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mtzanidakis/apiary/internal/swarm"
)

func (s *Store) SaveSwarm(sw *swarm.Swarm) error {
	structure, err := json.Marshal(sw.Structure)
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}
	agentIDs, _ := json.Marshal(setToList(sw.AgentIDs))
	taskIDs, _ := json.Marshal(setToList(sw.TaskIDs))

	_, err = s.db.Exec(`
		INSERT INTO swarms (id, topology, capacity, status, structure, agent_ids, task_ids, tasks_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			structure = excluded.structure,
			agent_ids = excluded.agent_ids,
			task_ids = excluded.task_ids,
			tasks_completed = excluded.tasks_completed`,
		sw.ID, string(sw.Topology), sw.Capacity, string(sw.Status), string(structure),
		string(agentIDs), string(taskIDs), sw.TasksCompleted, sw.CreatedAt)
	if err != nil {
		return fmt.Errorf("save swarm: %w", err)
	}
	return nil
}

func (s *Store) GetSwarm(id string) (*swarm.Swarm, error) {
	row := s.db.QueryRow(`SELECT id, topology, capacity, status, structure, agent_ids, task_ids, tasks_completed, created_at FROM swarms WHERE id = ?`, id)
	sw, err := scanSwarm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swarm: %w", err)
	}
	return sw, nil
}

func (s *Store) ListSwarms() ([]swarm.Swarm, error) {
	rows, err := s.db.Query(`SELECT id, topology, capacity, status, structure, agent_ids, task_ids, tasks_completed, created_at FROM swarms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list swarms: %w", err)
	}
	defer rows.Close()

	var swarms []swarm.Swarm
	for rows.Next() {
		sw, err := scanSwarm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swarm: %w", err)
		}
		swarms = append(swarms, *sw)
	}
	return swarms, rows.Err()
}

func (s *Store) DeleteSwarm(id string) error {
	_, err := s.db.Exec(`DELETE FROM swarms WHERE id = ?`, id)
	return err
}

func scanSwarm(scanner interface{ Scan(dest ...any) error }) (*swarm.Swarm, error) {
	sw := &swarm.Swarm{}
	var topology, status string
	var structure sql.NullString
	var agentIDs, taskIDs string
	err := scanner.Scan(&sw.ID, &topology, &sw.Capacity, &status, &structure, &agentIDs, &taskIDs, &sw.TasksCompleted, &sw.CreatedAt)
	if err != nil {
		return nil, err
	}
	sw.Topology = swarm.Topology(topology)
	sw.Status = swarm.SwarmStatus(status)
	if structure.Valid && structure.String != "null" {
		var ts swarm.TopologyStructure
		if err := json.Unmarshal([]byte(structure.String), &ts); err == nil {
			sw.Structure = &ts
		}
	}
	sw.AgentIDs = listToSet(agentIDs)
	sw.TaskIDs = listToSet(taskIDs)
	return sw, nil
}

func setToList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func listToSet(data string) map[string]bool {
	var list []string
	_ = json.Unmarshal([]byte(data), &list)
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}
