package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists registry URL lists in a small SQLite database, one row per
// role. Rows hold the serialized string-array form; reads are permissive and
// also accept the legacy map-shaped blobs older clients wrote.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the registry database at
// baseDir/registry.db.
func OpenStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	dbPath := filepath.Join(baseDir, "registry.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS registry_blobs (
		role TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate registry database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveStrings writes the string-array blob for a role.
func (s *Store) SaveStrings(role Role, urls []string) error {
	data, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO registry_blobs (role, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(role), string(data), time.Now().UnixMilli())
	return err
}

// LoadStrings reads the blob for a role. A missing row is an empty list.
// Accepts the current array-of-strings shape and the legacy map shape
// (content key to URL); map values come back in key order for determinism.
func (s *Store) LoadStrings(role Role) ([]string, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM registry_blobs WHERE role = ?`, string(role)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodePersisted([]byte(data))
}

func decodePersisted(data []byte) ([]string, error) {
	var urls []string
	if err := json.Unmarshal(data, &urls); err == nil {
		return urls, nil
	}
	var legacy map[string]string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("persisted registry blob is neither array nor map: %w", err)
	}
	keys := make([]string, 0, len(legacy))
	for k := range legacy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, legacy[k])
	}
	return out, nil
}
