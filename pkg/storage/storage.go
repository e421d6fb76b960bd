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

// Package storage persists gateway state across restarts: the registered
// agent table and the task records. Persistence is best-effort snapshotting,
// not a write-ahead log; the in-memory stores stay authoritative and a
// corrupt or missing snapshot degrades to an empty one.
package storage

import (
	"github.com/kadirpekel/a2a-gateway/pkg/agent"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

// State is one full snapshot of gateway state.
type State struct {
	Agents map[string]*agent.Record `json:"agents"`
	Tasks  map[string]*task.Record  `json:"tasks"`
}

// NewState returns an empty snapshot.
func NewState() *State {
	return &State{
		Agents: make(map[string]*agent.Record),
		Tasks:  make(map[string]*task.Record),
	}
}

// Backend loads and saves snapshots.
type Backend interface {
	// Load reads the last saved snapshot. A missing or unreadable
	// snapshot yields an empty state, not an error.
	Load() (*State, error)

	// Save writes a full snapshot.
	Save(*State) error

	// Close releases backend resources.
	Close() error
}
