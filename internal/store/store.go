// Package store is the write-through journal behind the registry. The
// in-memory records are authoritative; sqlite keeps a durable copy
// updated after every mutating call, plus a namespaced key-value space
// and the recurring schedules.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS swarms (
			id              TEXT PRIMARY KEY,
			topology        TEXT NOT NULL,
			capacity        INTEGER NOT NULL,
			status          TEXT NOT NULL,
			structure       TEXT,
			agent_ids       TEXT NOT NULL,
			task_ids        TEXT NOT NULL,
			tasks_completed INTEGER DEFAULT 0,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id                 TEXT PRIMARY KEY,
			swarm_id           TEXT NOT NULL,
			role               TEXT NOT NULL,
			capabilities       TEXT NOT NULL,
			status             TEXT NOT NULL,
			current_subtask_id TEXT,
			completed_tasks    INTEGER DEFAULT 0,
			mean_duration_ms   REAL DEFAULT 0,
			success_rate       REAL DEFAULT 1,
			created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_swarm ON agents(swarm_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id           TEXT PRIMARY KEY,
			swarm_id     TEXT NOT NULL,
			description  TEXT NOT NULL,
			priority     INTEGER DEFAULT 0,
			strategy     TEXT NOT NULL,
			status       TEXT NOT NULL,
			subtasks     TEXT NOT NULL,
			agent_ids    TEXT,
			results      TEXT,
			started_at   DATETIME,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_swarm ON tasks(swarm_id)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id          TEXT PRIMARY KEY,
			swarm_id    TEXT NOT NULL,
			name        TEXT NOT NULL,
			schedule    TEXT NOT NULL,
			description TEXT NOT NULL,
			strategy    TEXT,
			priority    INTEGER DEFAULT 0,
			status      TEXT DEFAULT 'active',
			next_run_at DATETIME,
			last_run_at DATETIME,
			last_status TEXT,
			last_error  TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(status, next_run_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}
