// Package sqlite persists analysis slots in a SQLite file so results
// survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SlotStore implements analysis.Store on top of a single SQLite table.
type SlotStore struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*SlotStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writes serialize anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SlotStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SlotStore) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS analysis_slots (
		slot_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_slots table: %w", err)
	}
	return nil
}

// Load returns the slot value and whether it is present.
func (s *SlotStore) Load(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM analysis_slots WHERE slot_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load slot %s: %w", key, err)
	}
	return value, true, nil
}

// Save overwrites the slot.
func (s *SlotStore) Save(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_slots (slot_key, value, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(slot_key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save slot %s: %w", key, err)
	}
	return nil
}

// Delete clears the slot.
func (s *SlotStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM analysis_slots WHERE slot_key = ?", key); err != nil {
		return fmt.Errorf("delete slot %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SlotStore) Close() error {
	return s.db.Close()
}
