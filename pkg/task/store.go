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

package task

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// SortOrder controls list ordering by last update time.
type SortOrder string

const (
	SortAscending  SortOrder = "Ascending"
	SortDescending SortOrder = "Descending"
)

// ParseSortOrder normalizes a caller-supplied sort order string.
// Empty or unrecognized values default to descending (most recent first).
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(s, string(SortAscending)) {
		return SortAscending
	}
	return SortDescending
}

// Store is the authoritative in-memory map of gateway task ID to record.
// A single lock guards the whole table; records are copied on the way in
// and out so readers never observe a torn write. For a given ID, updates
// are linearizable: the terminal-state-is-final check happens atomically
// with the read-modify-write, inside the lock.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Record
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*Record),
	}
}

// Create inserts a new record. The record's ID must be unused.
func (s *Store) Create(rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("task record must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[rec.ID]; exists {
		return fmt.Errorf("task %s already exists", rec.ID)
	}

	cp := rec.Clone()
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	s.tasks[rec.ID] = cp
	return nil
}

// Get returns a copy of the record for the given gateway ID.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Update applies mutate to the stored record and returns the resulting copy.
//
// If the stored record is already terminal the mutation is silently skipped
// and the current record is returned unchanged; terminal states are final and
// this is enforced here, not by callers. The mutation cannot change ID or
// CreatedAt, and it cannot replace an already-set AgentTaskID with a
// different value.
func (s *Store) Update(id string, mutate func(*Record)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if rec.State.IsTerminal() {
		return rec.Clone(), nil
	}

	id, createdAt, agentTaskID := rec.ID, rec.CreatedAt, rec.AgentTaskID
	mutate(rec)
	rec.ID = id
	rec.CreatedAt = createdAt
	if agentTaskID != "" {
		rec.AgentTaskID = agentTaskID
	}
	rec.UpdatedAt = time.Now()

	return rec.Clone(), nil
}

// RemoveByAgent deletes every record dispatched to the given agent URL and
// returns how many were removed. Used when an agent is unregistered so no
// record is left orphaned.
func (s *Store) RemoveByAgent(agentURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.tasks {
		if rec.AgentURL == agentURL {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}

// List returns copies of records, optionally filtered by exact state,
// ordered by UpdatedAt, truncated to limit (limit <= 0 means no limit).
// A full scan each call; fine at the expected table size.
func (s *Store) List(stateFilter State, order SortOrder, limit int) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.tasks))
	for _, rec := range s.tasks {
		if stateFilter != "" && rec.State != stateFilter {
			continue
		}
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if order == SortAscending {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Count returns the number of records in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tasks)
}

// Snapshot returns a copy of the whole table for the persistence boundary.
func (s *Store) Snapshot() map[string]*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Record, len(s.tasks))
	for id, rec := range s.tasks {
		out[id] = rec.Clone()
	}
	return out
}

// Restore replaces the table from a snapshot. Entries with a mismatched or
// missing ID are normalized to their map key rather than rejected.
func (s *Store) Restore(snapshot map[string]*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*Record, len(snapshot))
	for id, rec := range snapshot {
		if rec == nil || id == "" {
			continue
		}
		cp := rec.Clone()
		cp.ID = id
		s.tasks[id] = cp
	}
}
