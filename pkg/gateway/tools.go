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
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
	"github.com/kadirpekel/a2a-gateway/pkg/agent"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

// agentPayload is the tool-facing view of a registered agent.
type agentPayload struct {
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Version      string    `json:"version,omitempty"`
	Streaming    bool      `json:"streaming"`
	RegisteredAt time.Time `json:"registered_at"`
}

func toAgentPayload(rec *agent.Record) agentPayload {
	p := agentPayload{
		Name:         rec.Name(),
		URL:          rec.URL,
		RegisteredAt: rec.RegisteredAt,
	}
	if rec.Card != nil {
		p.Description = rec.Card.Description
		p.Version = rec.Card.Version
		p.Streaming = rec.Card.Capabilities.Streaming
	}
	return p
}

// taskPayload is the tool-facing view of a task record. The gateway task ID
// is the only handle callers use; the agent-side ID is informational.
type taskPayload struct {
	TaskID      string         `json:"task_id"`
	AgentTaskID string         `json:"agent_task_id,omitempty"`
	AgentURL    string         `json:"agent_url"`
	State       string         `json:"state"`
	Request     string         `json:"request,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Message     string         `json:"message,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	Artifacts   []a2a.Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toTaskPayload(rec *task.Record) taskPayload {
	p := taskPayload{
		TaskID:      rec.ID,
		AgentTaskID: rec.AgentTaskID,
		AgentURL:    rec.AgentURL,
		State:       string(rec.State),
		Request:     rec.Request,
		SessionID:   rec.SessionID,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.Result != nil {
		p.Message = rec.Result.Message
		p.ErrorCode = rec.Result.ErrorCode
		p.Artifacts = rec.Result.Artifacts
	}
	return p
}

// envelope is the uniform tool response shape.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func successResult(message string, data any) *mcp.CallToolResult {
	out, err := json.Marshal(envelope{Status: "success", Message: message, Data: data})
	if err != nil {
		return mcp.NewToolResultError("failed to encode response: " + err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	out, merr := json.Marshal(envelope{Status: "error", Message: err.Error()})
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	// The envelope carries the failure; the MCP error flag is set too so
	// clients that only check IsError see it.
	res := mcp.NewToolResultText(string(out))
	res.IsError = true
	return res
}

// instrument wraps a tool handler with call metrics.
func (g *Gateway) instrument(name string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := handler(ctx, req)
		isError := err != nil || (res != nil && res.IsError)
		g.metrics.RecordToolCall(ctx, name, isError)
		return res, err
	}
}

// registerTools adds the gateway's tool surface to the MCP server.
func (g *Gateway) registerTools(s *server.MCPServer) {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{
			mcp.NewTool("register_agent",
				mcp.WithDescription("Register an A2A agent by URL. Fetches the agent card and makes the agent available to the message tools."),
				mcp.WithString("url", mcp.Required(), mcp.Description("Base URL of the A2A agent, e.g. http://localhost:41241")),
			),
			g.handleRegisterAgent,
		},
		{
			mcp.NewTool("list_agents",
				mcp.WithDescription("List all registered A2A agents with their cards."),
			),
			g.handleListAgents,
		},
		{
			mcp.NewTool("unregister_agent",
				mcp.WithDescription("Unregister an A2A agent. Also removes all task records for that agent."),
				mcp.WithString("url", mcp.Required(), mcp.Description("URL the agent was registered under")),
			),
			g.handleUnregisterAgent,
		},
		{
			mcp.NewTool("send_message",
				mcp.WithDescription("Send a message to a registered agent. Returns the result directly when the agent answers quickly, otherwise returns a pending task ID to poll with get_task_result."),
				mcp.WithString("agent_url", mcp.Required(), mcp.Description("URL of the registered agent")),
				mcp.WithString("message", mcp.Required(), mcp.Description("Message text to send")),
				mcp.WithString("session_id", mcp.Description("Optional session ID to correlate multi-turn conversations")),
			),
			g.handleSendMessage,
		},
		{
			mcp.NewTool("send_message_stream",
				mcp.WithDescription("Send a message to a registered agent over its streaming endpoint and return the aggregated streamed response."),
				mcp.WithString("agent_url", mcp.Required(), mcp.Description("URL of the registered agent")),
				mcp.WithString("message", mcp.Required(), mcp.Description("Message text to send")),
				mcp.WithString("session_id", mcp.Description("Optional session ID to correlate multi-turn conversations")),
			),
			g.handleSendMessageStream,
		},
		{
			mcp.NewTool("get_task_result",
				mcp.WithDescription("Get the current result of a task by its gateway task ID, refreshing in-flight tasks from the agent."),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Gateway task ID returned by send_message")),
			),
			g.handleGetTaskResult,
		},
		{
			mcp.NewTool("cancel_task",
				mcp.WithDescription("Request cancellation of an in-flight task. Tasks that already finished are returned unchanged."),
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Gateway task ID returned by send_message")),
				mcp.WithString("reason", mcp.Description("Optional reason forwarded to the agent")),
			),
			g.handleCancelTask,
		},
		{
			mcp.NewTool("get_task_list",
				mcp.WithDescription("List task records, most recently updated first."),
				mcp.WithString("state", mcp.Description("Filter by state: pending, running, streaming, completed, error, cancelled")),
				mcp.WithString("sort_order", mcp.Description("Ascending or Descending by last update (default Descending)")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of records to return (0 = all)")),
			),
			g.handleGetTaskList,
		},
	}

	for _, t := range tools {
		s.AddTool(t.tool, g.instrument(t.tool.Name, t.handler))
	}
}

func (g *Gateway) handleRegisterAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return errorResult(err), nil
	}

	rec, err := g.RegisterAgent(ctx, url)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult("agent registered", toAgentPayload(rec)), nil
}

func (g *Gateway) handleListAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agents := g.ListAgents()
	payloads := make([]agentPayload, 0, len(agents))
	for _, rec := range agents {
		payloads = append(payloads, toAgentPayload(rec))
	}
	return successResult("", payloads), nil
}

func (g *Gateway) handleUnregisterAgent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return errorResult(err), nil
	}

	rec, removed, err := g.UnregisterAgent(url)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult("agent unregistered", map[string]any{
		"agent":         toAgentPayload(rec),
		"tasks_removed": removed,
	}), nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentURL, err := req.RequireString("agent_url")
	if err != nil {
		return errorResult(err), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return errorResult(err), nil
	}
	sessionID := req.GetString("session_id", "")

	rec, err := g.SendMessage(ctx, agentURL, message, sessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(sendMessageHint(rec), toTaskPayload(rec)), nil
}

// sendMessageHint tells the caller what to do next with the returned task.
func sendMessageHint(rec *task.Record) string {
	if rec.State.IsTerminal() {
		return "task finished"
	}
	return "task in progress; poll get_task_result with task_id"
}

func (g *Gateway) handleSendMessageStream(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentURL, err := req.RequireString("agent_url")
	if err != nil {
		return errorResult(err), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return errorResult(err), nil
	}
	sessionID := req.GetString("session_id", "")

	rec, err := g.SendMessageStream(ctx, agentURL, message, sessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult("stream finished", toTaskPayload(rec)), nil
}

func (g *Gateway) handleGetTaskResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return errorResult(err), nil
	}

	rec, err := g.GetTaskResult(ctx, taskID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult("", toTaskPayload(rec)), nil
}

func (g *Gateway) handleCancelTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return errorResult(err), nil
	}
	reason := req.GetString("reason", "")

	rec, err := g.CancelTask(ctx, taskID, reason)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult("", toTaskPayload(rec)), nil
}

func (g *Gateway) handleGetTaskList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stateArg := req.GetString("state", "")
	if stateArg != "" && !task.ValidState(task.State(stateArg)) {
		return errorResult(errors.New("unknown state filter: " + stateArg)), nil
	}

	order := task.ParseSortOrder(req.GetString("sort_order", ""))
	limit := req.GetInt("limit", 0)

	records := g.GetTaskList(task.State(stateArg), order, limit)
	payloads := make([]taskPayload, 0, len(records))
	for _, rec := range records {
		payloads = append(payloads, toTaskPayload(rec))
	}
	return successResult("", payloads), nil
}
