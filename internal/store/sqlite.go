// Package store persists engine state snapshots.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ladder_maker/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS strategy_state (
	strategy_id TEXT PRIMARY KEY,
	data        TEXT NOT NULL,
	checksum    BLOB NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// SQLiteStore keeps one snapshot row per strategy instance.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save writes one snapshot, keyed by its strategy id.
func (s *SQLiteStore) Save(ctx context.Context, state *core.StateSnapshot) error {
	if state.StrategyID == "" {
		return fmt.Errorf("snapshot has no strategy id")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Validate JSON (round-trip test)
	var testState core.StateSnapshot
	if err := json.Unmarshal(data, &testState); err != nil {
		return fmt.Errorf("state validation failed: %w", err)
	}

	checksum := sha256.Sum256(data)
	query := `INSERT OR REPLACE INTO strategy_state (strategy_id, data, checksum, updated_at) VALUES (?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, state.StrategyID, string(data), checksum[:], time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write state to db: %w", err)
	}

	return tx.Commit()
}

// Load reads the snapshot for a strategy. A missing row returns nil
// without error; a corrupted row fails.
func (s *SQLiteStore) Load(ctx context.Context, strategyID string) (*core.StateSnapshot, error) {
	query := `SELECT data, checksum FROM strategy_state WHERE strategy_id = ?`
	var data string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query, strategyID).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state from db: %w", err)
	}

	computedChecksum := sha256.Sum256([]byte(data))
	if !bytes.Equal(storedChecksum, computedChecksum[:]) {
		return nil, fmt.Errorf("checksum verification failed: data corruption detected")
	}

	var state core.StateSnapshot
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// ForStrategy scopes the store to one strategy id, satisfying the
// per-instance persistence interface.
func (s *SQLiteStore) ForStrategy(strategyID string) core.IStateStore {
	return &scopedStore{backend: s, strategyID: strategyID}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scopedStore struct {
	backend    *SQLiteStore
	strategyID string
}

func (s *scopedStore) SaveState(ctx context.Context, state *core.StateSnapshot) error {
	if state.StrategyID != s.strategyID {
		return fmt.Errorf("snapshot strategy %q does not match store scope %q", state.StrategyID, s.strategyID)
	}
	return s.backend.Save(ctx, state)
}

func (s *scopedStore) LoadState(ctx context.Context) (*core.StateSnapshot, error) {
	return s.backend.Load(ctx, s.strategyID)
}
