package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/mtzanidakis/apiary/internal/swarm"
)

// Snapshot is a zstd-compressed JSON dump of the journal, used for
// backups and offline inspection.
type Snapshot struct {
	Swarms    []swarm.Swarm `json:"swarms"`
	Agents    []swarm.Agent `json:"agents"`
	Tasks     []swarm.Task  `json:"tasks"`
	Schedules []Schedule    `json:"schedules"`
}

// Export writes a compressed snapshot of every journaled record.
func (s *Store) Export(w io.Writer) error {
	swarms, err := s.ListSwarms()
	if err != nil {
		return fmt.Errorf("export swarms: %w", err)
	}
	agents, err := s.ListAgents("")
	if err != nil {
		return fmt.Errorf("export agents: %w", err)
	}
	tasks, err := s.ListTasks("")
	if err != nil {
		return fmt.Errorf("export tasks: %w", err)
	}
	schedules, err := s.ListSchedules()
	if err != nil {
		return fmt.Errorf("export schedules: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	if err := enc.Encode(Snapshot{
		Swarms:    swarms,
		Agents:    agents,
		Tasks:     tasks,
		Schedules: schedules,
	}); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return zw.Close()
}

// ReadSnapshot decodes a snapshot previously written by Export.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
