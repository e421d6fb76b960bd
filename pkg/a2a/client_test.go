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

package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCard() AgentCard {
	return AgentCard{
		Name:    "echo-agent",
		URL:     "http://example.local",
		Version: "1.0.0",
		Capabilities: AgentCapabilities{
			Streaming: true,
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestDiscoverAgentAtBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		writeJSON(t, w, testCard())
	}))
	defer srv.Close()

	card, err := NewClient(nil).DiscoverAgent(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "echo-agent", card.Name)
	assert.True(t, card.Capabilities.Streaming)
}

func TestDiscoverAgentWellKnownFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == WellKnownCardPath {
			writeJSON(t, w, testCard())
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	card, err := NewClient(nil).DiscoverAgent(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "echo-agent", card.Name)
}

func TestDiscoverAgentRejectsNonCardResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// JSON, but not an agent card.
		writeJSON(t, w, map[string]string{"hello": "world"})
	}))
	defer srv.Close()

	_, err := NewClient(nil).DiscoverAgent(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/message/send", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var params MessageSendParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "sess-1", params.SessionID)
		assert.Equal(t, MessageRoleUser, params.Message.Role)

		writeJSON(t, w, Task{
			ID:     "remote-1",
			Status: TaskStatus{State: TaskStateWorking},
		})
	}))
	defer srv.Close()

	task, err := NewClient(nil).SendMessage(context.Background(), srv.URL,
		CreateTextMessage(MessageRoleUser, "hello"), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", task.ID)
	assert.Equal(t, TaskStateWorking, task.Status.State)
}

func TestGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/remote-1", r.URL.Path)
		writeJSON(t, w, Task{
			ID:     "remote-1",
			Status: TaskStatus{State: TaskStateCompleted},
		})
	}))
	defer srv.Close()

	task, err := NewClient(nil).GetTask(context.Background(), srv.URL, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
}

func TestGetTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewClient(nil).GetTask(context.Background(), srv.URL, "ghost")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTaskUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(t, w, map[string]any{
			"error": TaskError{Code: "overloaded", Message: "try again later"},
		})
	}))
	defer srv.Close()

	_, err := NewClient(nil).GetTask(context.Background(), srv.URL, "remote-1")
	require.Error(t, err)

	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, "overloaded", ue.Code)
	assert.Equal(t, "try again later", ue.Message)
}

func TestGetTaskBareErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		writeJSON(t, w, TaskError{Code: "502", Message: "bad gateway"})
	}))
	defer srv.Close()

	_, err := NewClient(nil).GetTask(context.Background(), srv.URL, "remote-1")
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, "bad gateway", ue.Message)
}

func TestCancelTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/remote-1/cancel", r.URL.Path)

		var params TaskCancelParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "remote-1", params.TaskID)
		assert.Equal(t, "not needed", params.Reason)

		writeJSON(t, w, Task{
			ID:     "remote-1",
			Status: TaskStatus{State: TaskStateCanceled},
		})
	}))
	defer srv.Close()

	task, err := NewClient(nil).CancelTask(context.Background(), srv.URL, "remote-1", "not needed")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, task.Status.State)
}

func TestSendMessageStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/message/stream", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		chunk := func(v any) {
			data, err := json.Marshal(v)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}

		msg := CreateTextMessage(MessageRoleAssistant, "hello ")
		chunk(StreamEvent{Type: StreamEventTypeMessage, TaskID: "remote-1", Message: &msg})
		msg2 := CreateTextMessage(MessageRoleAssistant, "world")
		chunk(StreamEvent{Type: StreamEventTypeMessage, TaskID: "remote-1", Message: &msg2})
		chunk(StreamEvent{Type: StreamEventTypeStatus, TaskID: "remote-1",
			Status: &TaskStatus{State: TaskStateCompleted}})
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	events, err := NewClient(nil).SendMessageStreaming(context.Background(), srv.URL,
		CreateTextMessage(MessageRoleUser, "hi"), "")
	require.NoError(t, err)

	var got []StreamEvent
	for event := range events {
		got = append(got, event)
	}

	require.Len(t, got, 3)
	assert.Equal(t, StreamEventTypeMessage, got[0].Type)
	assert.Equal(t, StreamEventTypeStatus, got[2].Type)
	assert.Equal(t, TaskStateCompleted, got[2].Status.State)
}

func TestAuthHeaders(t *testing.T) {
	tests := []struct {
		name       string
		auth       *AuthCredentials
		wantHeader string
		wantValue  string
	}{
		{
			name:       "bearer",
			auth:       &AuthCredentials{Type: "bearer", Token: "tok-1"},
			wantHeader: "Authorization",
			wantValue:  "Bearer tok-1",
		},
		{
			name:       "api key default header",
			auth:       &AuthCredentials{Type: "apiKey", APIKey: "key-1"},
			wantHeader: "X-API-Key",
			wantValue:  "key-1",
		},
		{
			name:       "api key custom header",
			auth:       &AuthCredentials{Type: "apiKey", APIKey: "key-2", APIKeyHeader: "X-Custom"},
			wantHeader: "X-Custom",
			wantValue:  "key-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantValue, r.Header.Get(tt.wantHeader))
				writeJSON(t, w, testCard())
			}))
			defer srv.Close()

			client := NewClient(&ClientConfig{Auth: tt.auth})
			_, err := client.DiscoverAgent(context.Background(), srv.URL)
			require.NoError(t, err)
		})
	}
}

func TestExtractTextFromTask(t *testing.T) {
	task := &Task{
		Status: TaskStatus{State: TaskStateCompleted},
		Messages: []Message{
			CreateTextMessage(MessageRoleUser, "question"),
			CreateTextMessage(MessageRoleAssistant, "answer"),
		},
	}
	assert.Equal(t, "answer", ExtractTextFromTask(task))

	statusMsg := CreateTextMessage(MessageRoleAssistant, "status wins")
	task.Status.Message = &statusMsg
	assert.Equal(t, "status wins", ExtractTextFromTask(task))

	assert.Equal(t, "", ExtractTextFromTask(nil))
}
