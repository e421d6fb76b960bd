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

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

// SendMessageStream sends text over the agent's streaming endpoint and
// consumes the whole stream before returning, aggregating text chunks into
// the task result. MCP tool calls are request/response, so the stream is
// drained here rather than relayed; the record moves through streaming to a
// terminal state as events arrive.
func (g *Gateway) SendMessageStream(ctx context.Context, url, text, sessionID string) (*task.Record, error) {
	url = normalizeURL(url)

	agentRec, ok := g.agents.Get(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", task.ErrAgentNotRegistered, url)
	}
	if agentRec.Card != nil && !agentRec.Card.Capabilities.Streaming {
		return nil, fmt.Errorf("agent %s does not support streaming", agentRec.Name())
	}

	rec := &task.Record{
		ID:        uuid.NewString(),
		AgentURL:  url,
		Request:   text,
		SessionID: sessionID,
		State:     task.StateStreaming,
	}
	if err := g.tasks.Create(rec); err != nil {
		return nil, err
	}

	events, err := g.client.SendMessageStreaming(ctx, url,
		a2a.CreateTextMessage(a2a.MessageRoleUser, text), sessionID)
	if err != nil {
		return g.tasks.Update(rec.ID, func(r *task.Record) {
			r.State = task.StateError
			r.Result = &task.Result{Message: err.Error()}
		})
	}

	var (
		chunks     strings.Builder
		artifacts  []a2a.Artifact
		finalState = task.StateCompleted
		finalMsg   string
	)

	for event := range events {
		switch event.Type {
		case a2a.StreamEventTypeMessage:
			if event.Message != nil {
				chunks.WriteString(a2a.ExtractTextFromMessage(event.Message))
			}
			if event.TaskID != "" {
				g.noteAgentTaskID(rec.ID, event.TaskID)
			}

		case a2a.StreamEventTypeArtifact:
			if event.Artifact != nil {
				artifacts = append(artifacts, *event.Artifact)
			}

		case a2a.StreamEventTypeStatus, a2a.StreamEventTypeDone:
			if event.Status == nil {
				continue
			}
			switch event.Status.State {
			case a2a.TaskStateFailed:
				finalState = task.StateError
				finalMsg = event.Status.Reason
			case a2a.TaskStateCanceled:
				finalState = task.StateCancelled
			}
			if event.Status.Message != nil {
				if text := a2a.ExtractTextFromMessage(event.Status.Message); text != "" {
					finalMsg = text
				}
			}

		case a2a.StreamEventTypeError:
			finalState = task.StateError
			if event.Status != nil {
				finalMsg = event.Status.Reason
			}
			if finalMsg == "" {
				finalMsg = "agent reported a stream error"
			}
		}
	}

	if err := ctx.Err(); err != nil {
		finalState = task.StateError
		finalMsg = fmt.Sprintf("stream interrupted: %v", err)
	}

	message := chunks.String()
	if finalState != task.StateCompleted && finalMsg != "" {
		message = finalMsg
	} else if message == "" {
		message = finalMsg
	}

	slog.Info("Stream drained", "task", rec.ID, "agent", agentRec.Name(), "state", finalState)

	return g.tasks.Update(rec.ID, func(r *task.Record) {
		r.State = finalState
		r.Result = &task.Result{Message: message, Artifacts: artifacts}
	})
}

// noteAgentTaskID records the agent-side task ID the first time a stream
// event reveals it.
func (g *Gateway) noteAgentTaskID(id, agentTaskID string) {
	_, err := g.tasks.Update(id, func(r *task.Record) {
		if r.AgentTaskID == "" {
			r.AgentTaskID = agentTaskID
		}
	})
	if err != nil {
		slog.Warn("Failed to record agent task ID", "task", id, "error", err)
	}
}
