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

// Package gateway exposes A2A agents as MCP tools. It owns the agent
// registry, the task store, and the dispatcher, and serves them over the
// MCP transports (stdio, streamable HTTP, SSE).
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
	"github.com/kadirpekel/a2a-gateway/pkg/agent"
	"github.com/kadirpekel/a2a-gateway/pkg/config"
	"github.com/kadirpekel/a2a-gateway/pkg/observability"
	"github.com/kadirpekel/a2a-gateway/pkg/storage"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

// Gateway wires the agent registry, task store, and dispatcher together and
// implements the operations the MCP tools expose.
type Gateway struct {
	cfg        *config.Config
	client     *a2a.Client
	agents     *agent.Registry
	tasks      *task.Store
	dispatcher *task.Dispatcher
	metrics    *observability.Metrics
}

// New assembles a gateway from configuration. metrics may be nil.
func New(cfg *config.Config, metrics *observability.Metrics) *Gateway {
	client := a2a.NewClient(&a2a.ClientConfig{Timeout: cfg.Client.Timeout})
	agents := agent.NewRegistry()
	tasks := task.NewStore()
	dispatcher := task.NewDispatcher(tasks, agents, client, task.Options{
		ImmediateTimeout: cfg.Dispatch.ImmediateTimeout,
		PollInterval:     cfg.Dispatch.PollInterval,
		MaxPolls:         cfg.Dispatch.MaxPolls,
	}, metrics)

	return &Gateway{
		cfg:        cfg,
		client:     client,
		agents:     agents,
		tasks:      tasks,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// normalizeURL strips a trailing slash so the same agent registered with and
// without one maps to a single registry key.
func normalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// RegisterAgent discovers the agent card at url and adds the agent to the
// registry. Re-registering refreshes the card.
func (g *Gateway) RegisterAgent(ctx context.Context, url string) (*agent.Record, error) {
	url = normalizeURL(url)
	if url == "" {
		return nil, fmt.Errorf("agent url is required")
	}

	card, err := g.client.DiscoverAgent(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to discover agent at %s: %w", url, err)
	}

	rec, err := g.agents.Register(url, card)
	if err != nil {
		return nil, err
	}
	slog.Info("Registered agent", "agent", rec.Name(), "url", url)
	return rec, nil
}

// ListAgents returns all registered agents sorted by URL.
func (g *Gateway) ListAgents() []*agent.Record {
	return g.agents.List()
}

// UnregisterAgent removes an agent and every task record dispatched to it.
func (g *Gateway) UnregisterAgent(url string) (*agent.Record, int, error) {
	url = normalizeURL(url)

	rec, err := g.agents.Unregister(url)
	if err != nil {
		return nil, 0, err
	}

	removed := g.tasks.RemoveByAgent(url)
	slog.Info("Unregistered agent", "agent", rec.Name(), "url", url, "tasks_removed", removed)
	return rec, removed, nil
}

// SendMessage dispatches text to a registered agent and returns the
// resulting task record: terminal if the agent replied within the
// immediate-response window, pending or running otherwise.
func (g *Gateway) SendMessage(ctx context.Context, url, text, sessionID string) (*task.Record, error) {
	return g.dispatcher.Dispatch(ctx, normalizeURL(url), text, sessionID)
}

// GetTaskResult returns the current record for a gateway task ID, refreshing
// in-flight tasks from the remote agent first.
func (g *Gateway) GetTaskResult(ctx context.Context, id string) (*task.Record, error) {
	return g.dispatcher.GetResult(ctx, id)
}

// CancelTask requests cancellation of an in-flight task.
func (g *Gateway) CancelTask(ctx context.Context, id, reason string) (*task.Record, error) {
	return g.dispatcher.Cancel(ctx, id, reason)
}

// GetTaskList returns stored task records filtered by state.
func (g *Gateway) GetTaskList(stateFilter task.State, order task.SortOrder, limit int) []*task.Record {
	return g.dispatcher.List(stateFilter, order, limit)
}

// Snapshot captures gateway state for persistence.
func (g *Gateway) Snapshot() *storage.State {
	return &storage.State{
		Agents: g.agents.Snapshot(),
		Tasks:  g.tasks.Snapshot(),
	}
}

// Restore replaces gateway state from a snapshot. Tasks that were in flight
// when the snapshot was taken restart without a watcher; their next
// get_task_result refreshes them.
func (g *Gateway) Restore(state *storage.State) {
	if state == nil {
		return
	}
	g.agents.Restore(state.Agents)
	g.tasks.Restore(state.Tasks)
	slog.Info("Restored gateway state",
		"agents", g.agents.Count(), "tasks", g.tasks.Count())
}

// Drain waits for outstanding background watchers to finish.
func (g *Gateway) Drain(ctx context.Context) error {
	return g.dispatcher.Drain(ctx)
}

// Close stops all background work.
func (g *Gateway) Close() {
	g.dispatcher.Close()
}
