package store

import (
	"database/sql"
	"fmt"
	"time"
)

// KVEntry is one namespaced key-value record.
type KVEntry struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Put writes a value under a namespaced key (e.g. "task:<id>"). A zero
// ttl means the entry never expires.
func (s *Store) Put(key, value string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or false when the key is absent or has
// expired.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`
		SELECT value FROM kv
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, time.Now()).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// List returns unexpired entries whose keys match a glob pattern, e.g.
// "task:*".
func (s *Store) List(pattern string) ([]KVEntry, error) {
	rows, err := s.db.Query(`
		SELECT key, value, expires_at FROM kv
		WHERE key GLOB ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key`,
		pattern, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}
	defer rows.Close()

	var entries []KVEntry
	for rows.Next() {
		var e KVEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan kv entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeExpired removes entries whose ttl has passed.
func (s *Store) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}
