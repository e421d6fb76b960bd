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

// Package agent provides the registry of remote A2A agents known to the
// gateway. Agents are keyed by their base URL; the registry owns nothing
// beyond the resolved agent card.
package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
)

// ErrNotRegistered is returned when an operation references an agent URL
// that is not in the registry.
var ErrNotRegistered = errors.New("agent not registered")

// Record holds a registered agent and its resolved card.
type Record struct {
	URL          string         `json:"url"`
	Card         *a2a.AgentCard `json:"card"`
	RegisteredAt time.Time      `json:"registeredAt"`
}

// Name returns the agent's display name, falling back to its URL.
func (r *Record) Name() string {
	if r.Card != nil && r.Card.Name != "" {
		return r.Card.Name
	}
	return r.URL
}

// clone copies the record. The card pointer is shared; cards are immutable
// once registered.
func (r *Record) clone() *Record {
	cp := *r
	return &cp
}

// Registry is the in-memory directory of registered agents.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Record
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*Record),
	}
}

// Register adds or replaces an agent under its URL.
// Re-registering an existing URL refreshes the stored card.
func (r *Registry) Register(url string, card *a2a.AgentCard) (*Record, error) {
	if url == "" {
		return nil, fmt.Errorf("agent URL cannot be empty")
	}
	if card == nil {
		return nil, fmt.Errorf("agent card cannot be nil")
	}

	rec := &Record{
		URL:          url,
		Card:         card,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[url] = rec
	return rec, nil
}

// Get returns a copy of the record for the given URL.
func (r *Registry) Get(url string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.agents[url]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Unregister removes the agent and returns its record.
// Returns ErrNotRegistered when the URL is unknown.
func (r *Registry) Unregister(url string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, url)
	}

	delete(r.agents, url)
	return rec, nil
}

// List returns all registered agents ordered by URL.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*Record, 0, len(r.agents))
	for _, rec := range r.agents {
		records = append(records, rec.clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].URL < records[j].URL
	})
	return records
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.agents)
}

// Snapshot returns a serializable copy of the registry contents for the
// persistence boundary.
func (r *Registry) Snapshot() map[string]*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Record, len(r.agents))
	for url, rec := range r.agents {
		out[url] = rec.clone()
	}
	return out
}

// Restore replaces the registry contents from a snapshot. Entries without a
// card are skipped rather than failing the whole load.
func (r *Registry) Restore(snapshot map[string]*Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents = make(map[string]*Record, len(snapshot))
	for url, rec := range snapshot {
		if url == "" || rec == nil || rec.Card == nil {
			continue
		}
		cp := *rec
		cp.URL = url
		r.agents[url] = &cp
	}
}
