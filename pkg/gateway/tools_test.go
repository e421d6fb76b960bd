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
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(tool string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	return req
}

// decodeEnvelope unpacks a tool result's JSON envelope.
func decodeEnvelope(t *testing.T, res *mcp.CallToolResult) (string, string, json.RawMessage) {
	t.Helper()

	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)

	var env struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
	return env.Status, env.Message, env.Data
}

func TestHandleRegisterAgent(t *testing.T) {
	agent := newFakeAgent(t, "tool-agent")
	gw := newTestGateway(t)

	res, err := gw.handleRegisterAgent(context.Background(),
		callRequest("register_agent", map[string]any{"url": agent.url()}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	status, _, data := decodeEnvelope(t, res)
	assert.Equal(t, "success", status)

	var payload agentPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "tool-agent", payload.Name)
	assert.True(t, payload.Streaming)
}

func TestHandleRegisterAgentMissingURL(t *testing.T) {
	gw := newTestGateway(t)

	res, err := gw.handleRegisterAgent(context.Background(),
		callRequest("register_agent", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	status, message, _ := decodeEnvelope(t, res)
	assert.Equal(t, "error", status)
	assert.NotEmpty(t, message)
}

func TestHandleSendMessageAndGetResult(t *testing.T) {
	agent := newFakeAgent(t, "tool-fast")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	res, err := gw.handleSendMessage(context.Background(),
		callRequest("send_message", map[string]any{
			"agent_url": agent.url(),
			"message":   "hello",
		}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	status, _, data := decodeEnvelope(t, res)
	assert.Equal(t, "success", status)

	var sent taskPayload
	require.NoError(t, json.Unmarshal(data, &sent))
	assert.Equal(t, "completed", sent.State)
	assert.Equal(t, "the answer", sent.Message)
	require.NotEmpty(t, sent.TaskID)

	// Poll by gateway ID.
	res, err = gw.handleGetTaskResult(context.Background(),
		callRequest("get_task_result", map[string]any{"task_id": sent.TaskID}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	_, _, data = decodeEnvelope(t, res)
	var polled taskPayload
	require.NoError(t, json.Unmarshal(data, &polled))
	assert.Equal(t, sent.TaskID, polled.TaskID)
	assert.Equal(t, "completed", polled.State)
}

func TestHandleGetTaskResultUnknownID(t *testing.T) {
	gw := newTestGateway(t)

	res, err := gw.handleGetTaskResult(context.Background(),
		callRequest("get_task_result", map[string]any{"task_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	status, message, _ := decodeEnvelope(t, res)
	assert.Equal(t, "error", status)
	assert.Contains(t, message, "not found")
}

func TestHandleGetTaskListRejectsUnknownState(t *testing.T) {
	gw := newTestGateway(t)

	res, err := gw.handleGetTaskList(context.Background(),
		callRequest("get_task_list", map[string]any{"state": "half-done"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetTaskList(t *testing.T) {
	agent := newFakeAgent(t, "tool-lister")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)
	_, err = gw.SendMessage(context.Background(), agent.url(), "one", "")
	require.NoError(t, err)

	res, err := gw.handleGetTaskList(context.Background(),
		callRequest("get_task_list", map[string]any{"limit": float64(10)}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	_, _, data := decodeEnvelope(t, res)
	var payloads []taskPayload
	require.NoError(t, json.Unmarshal(data, &payloads))
	assert.Len(t, payloads, 1)
}

func TestHandleListAgentsEmpty(t *testing.T) {
	gw := newTestGateway(t)

	res, err := gw.handleListAgents(context.Background(),
		callRequest("list_agents", nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	status, _, data := decodeEnvelope(t, res)
	assert.Equal(t, "success", status)

	var payloads []agentPayload
	require.NoError(t, json.Unmarshal(data, &payloads))
	assert.Empty(t, payloads)
}

func TestHandleUnregisterAgentNotRegistered(t *testing.T) {
	gw := newTestGateway(t)

	res, err := gw.handleUnregisterAgent(context.Background(),
		callRequest("unregister_agent", map[string]any{"url": "http://nobody.local"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
