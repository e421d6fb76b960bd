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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
)

// runWatcher reconciles one task against the remote agent until the record
// goes terminal, the poll budget runs out, or the watcher is cancelled.
//
// inflight, when non-nil, carries the original send's late reply; the watcher
// consumes it so a reply that lost the immediate-response race is merged
// rather than dropped. Polls use whatever ID the record currently maps to on
// the agent side, which is the gateway ID until a late reply or poll reveals
// the agent's own.
func (d *Dispatcher) runWatcher(ctx context.Context, id string, inflight <-chan reply) {
	defer d.finishWatcher(ctx, id)

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		rec, ok := d.store.Get(id)
		if !ok {
			// Unregistered agent cleanup can delete records out from
			// under a running watcher.
			slog.Debug("Watched task disappeared from store", "task", id)
			return
		}
		if rec.State.IsTerminal() {
			return
		}

		select {
		case <-ctx.Done():
			return

		case r := <-inflight:
			// Late arrival of the original send's reply.
			inflight = nil
			out := classify(r.task, r.err)
			if _, err := d.store.Update(id, out.apply); err != nil {
				slog.Warn("Failed to merge late reply", "task", id, "error", err)
				return
			}
			slog.Debug("Merged late send reply", "task", id, "state", out.state)

		case <-ticker.C:
			polls++
			if d.opts.MaxPolls > 0 && polls > d.opts.MaxPolls {
				d.giveUp(id, polls-1)
				return
			}

			remote, err := d.invoker.GetTask(ctx, rec.AgentURL, rec.RemoteID())
			if ctx.Err() != nil {
				// The watcher was cancelled while the poll was in
				// flight. Cancellation ends the loop; it is not a
				// task outcome, so the record stays as it was.
				return
			}
			if errors.Is(err, a2a.ErrTaskNotFound) {
				// The agent may not have materialized the task yet;
				// remote bookkeeping lag is not an error.
				d.metrics.RecordPoll(ctx, "not_found")
				continue
			}
			if err != nil {
				d.metrics.RecordPoll(ctx, "error")
			} else {
				d.metrics.RecordPoll(ctx, "merged")
			}

			out := classify(remote, err)
			if _, uerr := d.store.Update(id, out.apply); uerr != nil {
				slog.Warn("Failed to merge poll result", "task", id, "error", uerr)
				return
			}
		}
	}
}

// giveUp marks a task as terminally failed after exhausting the poll budget.
func (d *Dispatcher) giveUp(id string, polls int) {
	msg := fmt.Sprintf("gave up waiting for the agent after %d status checks", polls)
	if _, err := d.store.Update(id, func(rec *Record) {
		rec.State = StateError
		rec.Result = &Result{Message: msg}
	}); err != nil {
		slog.Warn("Failed to record poll budget exhaustion", "task", id, "error", err)
		return
	}
	slog.Warn("Poll budget exhausted", "task", id, "polls", polls)
}
