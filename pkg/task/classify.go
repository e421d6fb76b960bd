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

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
)

// outcome is the classification of one raw remote reply. It is always a
// concrete store mutation; there is no case that silently drops a reply.
type outcome struct {
	state       State
	agentTaskID string
	result      *Result
}

// apply writes the outcome onto a record.
func (o outcome) apply(rec *Record) {
	rec.State = o.state
	if o.agentTaskID != "" {
		rec.AgentTaskID = o.agentTaskID
	}
	if o.result != nil {
		rec.Result = o.result
	}
}

// classify maps a remote reply (or the error obtained instead of one) to
// exactly one of four shapes: an immediate terminal message, a handle to
// work still in progress, an upstream error, or an unrecognized reply.
// It is pure and total; every input produces a mutation.
func classify(remote *a2a.Task, err error) outcome {
	if err != nil {
		if ue, ok := a2a.AsUpstreamError(err); ok {
			return outcome{
				state:  StateError,
				result: &Result{Message: ue.Message, ErrorCode: ue.Code},
			}
		}
		return outcome{
			state:  StateError,
			result: &Result{Message: err.Error()},
		}
	}

	if remote == nil {
		return outcome{
			state:  StateError,
			result: &Result{Message: "unexpected empty reply from agent"},
		}
	}

	switch remote.Status.State {
	case a2a.TaskStateCompleted:
		return outcome{
			state:       StateCompleted,
			agentTaskID: remote.ID,
			result: &Result{
				Message:   a2a.ExtractTextFromTask(remote),
				Artifacts: remote.Artifacts,
			},
		}

	case a2a.TaskStateFailed:
		res := &Result{Message: remote.Status.Reason}
		if remote.Error != nil {
			res.Message = remote.Error.Message
			res.ErrorCode = remote.Error.Code
		}
		if res.Message == "" {
			res.Message = "agent reported failure"
		}
		return outcome{state: StateError, agentTaskID: remote.ID, result: res}

	case a2a.TaskStateCanceled:
		return outcome{
			state:       StateCancelled,
			agentTaskID: remote.ID,
			result:      &Result{Message: a2a.ExtractTextFromTask(remote)},
		}

	case a2a.TaskStateStreaming:
		return outcome{
			state:       StateStreaming,
			agentTaskID: remote.ID,
			result:      partialResult(remote),
		}

	case a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateInputRequired:
		return outcome{
			state:       StateRunning,
			agentTaskID: remote.ID,
			result:      partialResult(remote),
		}

	default:
		return outcome{
			state: StateError,
			result: &Result{
				Message: fmt.Sprintf("unexpected reply shape from agent: task state %q", remote.Status.State),
			},
		}
	}
}

// partialResult carries whatever text the remote has produced so far on a
// non-terminal task, or nil when there is none yet.
func partialResult(remote *a2a.Task) *Result {
	text := a2a.ExtractTextFromTask(remote)
	if text == "" && len(remote.Artifacts) == 0 {
		return nil
	}
	return &Result{Message: text, Artifacts: remote.Artifacts}
}
