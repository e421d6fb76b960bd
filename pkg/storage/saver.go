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
	"context"
	"log/slog"
	"time"
)

// Saver periodically snapshots gateway state to a backend, and once more on
// shutdown. A failed save logs and waits for the next tick; the in-memory
// state is still live.
type Saver struct {
	backend  Backend
	snapshot func() *State
	interval time.Duration
}

// NewSaver creates a saver. snapshot is called to capture current state.
func NewSaver(backend Backend, snapshot func() *State, interval time.Duration) *Saver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Saver{backend: backend, snapshot: snapshot, interval: interval}
}

// Run saves on a ticker until ctx is cancelled, then performs a final save.
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.save()
		case <-ctx.Done():
			s.save()
			return nil
		}
	}
}

// SaveNow captures and persists state immediately.
func (s *Saver) SaveNow() error {
	return s.backend.Save(s.snapshot())
}

func (s *Saver) save() {
	if err := s.SaveNow(); err != nil {
		slog.Error("Failed to save state snapshot", "error", err)
		return
	}
	slog.Debug("Saved state snapshot")
}
