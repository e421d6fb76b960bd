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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kadirpekel/a2a-gateway/pkg/agent"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

const (
	agentsFileName = "registered_agents.json"
	tasksFileName  = "tasks.json"
)

// JSONBackend snapshots state to two JSON files in a data directory.
type JSONBackend struct {
	dir string
}

// NewJSONBackend creates a backend rooted at dir, creating it if needed.
func NewJSONBackend(dir string) (*JSONBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &JSONBackend{dir: dir}, nil
}

// Load reads both snapshot files. A missing or malformed file logs a warning
// and contributes an empty table; a half-recovered state beats refusing to
// start.
func (b *JSONBackend) Load() (*State, error) {
	state := NewState()

	if err := loadJSONFile(filepath.Join(b.dir, agentsFileName), &state.Agents); err != nil {
		slog.Warn("Starting with empty agent table", "error", err)
		state.Agents = make(map[string]*agent.Record)
	}
	if err := loadJSONFile(filepath.Join(b.dir, tasksFileName), &state.Tasks); err != nil {
		slog.Warn("Starting with empty task table", "error", err)
		state.Tasks = make(map[string]*task.Record)
	}

	return state, nil
}

// Save writes both snapshot files atomically.
func (b *JSONBackend) Save(state *State) error {
	if err := saveJSONFile(filepath.Join(b.dir, agentsFileName), state.Agents); err != nil {
		return fmt.Errorf("failed to save agents: %w", err)
	}
	if err := saveJSONFile(filepath.Join(b.dir, tasksFileName), state.Tasks); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (b *JSONBackend) Close() error {
	return nil
}

func loadJSONFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// saveJSONFile writes via a temp file plus rename so a crash mid-write
// never leaves a truncated snapshot.
func saveJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
