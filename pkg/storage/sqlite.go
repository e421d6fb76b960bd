// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createStateTableSQL = `
CREATE TABLE IF NOT EXISTS gateway_state (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const (
	stateKeyAgents = "agents"
	stateKeyTasks  = "tasks"
)

// SQLiteBackend stores snapshots as JSON blobs in a SQLite database.
// Same snapshot model as the file backend, one durable file instead of two.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at dir/gateway.db.
func NewSQLiteBackend(dir string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "gateway.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createStateTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create gateway_state table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Load reads both state rows. Missing or malformed rows degrade to empty
// tables with a warning.
func (b *SQLiteBackend) Load() (*State, error) {
	state := NewState()

	if err := b.loadKey(stateKeyAgents, &state.Agents); err != nil {
		slog.Warn("Starting with empty agent table", "error", err)
	}
	if err := b.loadKey(stateKeyTasks, &state.Tasks); err != nil {
		slog.Warn("Starting with empty task table", "error", err)
	}

	return state, nil
}

func (b *SQLiteBackend) loadKey(key string, target any) error {
	var value string
	err := b.db.QueryRow(`SELECT value FROM gateway_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return fmt.Errorf("failed to parse state key %s: %w", key, err)
	}
	return nil
}

// Save upserts both state rows in one transaction.
func (b *SQLiteBackend) Save(state *State) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for key, value := range map[string]any{
		stateKeyAgents: state.Agents,
		stateKeyTasks:  state.Tasks,
	} {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode state key %s: %w", key, err)
		}
		_, err = tx.Exec(`
			INSERT INTO gateway_state (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(data), now)
		if err != nil {
			return fmt.Errorf("failed to write state key %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
