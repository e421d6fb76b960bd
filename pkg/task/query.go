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

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
)

// GetResult returns the current record for a gateway task ID, refreshing it
// from the remote agent first when it is still in flight. A terminal record
// is served from the store without any remote call; the remote no longer
// knowing the task is treated as lag, not failure, and yields the record
// as-is.
func (d *Dispatcher) GetResult(ctx context.Context, id string) (*Record, error) {
	rec, ok := d.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.State.IsTerminal() {
		return rec, nil
	}

	remote, err := d.invoker.GetTask(ctx, rec.AgentURL, rec.RemoteID())
	if err != nil && ctx.Err() != nil {
		// The caller hung up mid-probe. That aborts the refresh, not
		// the task; serve the stored record unchanged.
		return rec, nil
	}
	if errors.Is(err, a2a.ErrTaskNotFound) {
		d.metrics.RecordPoll(ctx, "not_found")
		return rec, nil
	}
	if err != nil {
		d.metrics.RecordPoll(ctx, "error")
	} else {
		d.metrics.RecordPoll(ctx, "merged")
	}

	out := classify(remote, err)
	return d.store.Update(id, out.apply)
}

// List returns stored records filtered by state, ordered by last update.
func (d *Dispatcher) List(stateFilter State, order SortOrder, limit int) []*Record {
	return d.store.List(stateFilter, order, limit)
}

// Cancel requests cancellation of an in-flight task. A terminal record is
// returned unchanged without contacting the agent; cancellation is about
// in-flight work only. The remote's verdict wins: an agent that completes
// the task instead of cancelling it produces a completed record.
func (d *Dispatcher) Cancel(ctx context.Context, id, reason string) (*Record, error) {
	rec, ok := d.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.State.IsTerminal() {
		return rec, nil
	}

	remote, err := d.invoker.CancelTask(ctx, rec.AgentURL, rec.RemoteID(), reason)
	if err != nil && ctx.Err() != nil {
		// Interrupted before a verdict; whether the cancel landed is
		// unknown. The record stays in flight for later reconciliation.
		return rec, nil
	}
	if errors.Is(err, a2a.ErrTaskNotFound) {
		// Nothing to cancel on the remote side. The local record is
		// settled directly; the watcher sees the terminal state and
		// stops on its next pass.
		return d.store.Update(id, func(r *Record) {
			r.State = StateCancelled
			r.Result = &Result{Message: "cancelled; task was not found on the agent"}
		})
	}

	out := classify(remote, err)
	updated, uerr := d.store.Update(id, out.apply)
	if uerr != nil {
		return nil, uerr
	}
	slog.Info("Cancel processed", "task", id, "state", updated.State)
	return updated, nil
}
