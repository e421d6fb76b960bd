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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
	"github.com/kadirpekel/a2a-gateway/pkg/config"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

// fakeAgent is an in-process A2A agent used for gateway tests. It answers
// discovery, message/send, message/stream, tasks/{id}, and tasks/{id}/cancel.
type fakeAgent struct {
	mu sync.Mutex

	name string
	// replyDelay makes message/send slow to force the pending path.
	replyDelay time.Duration
	// sendState is the task state message/send answers with.
	sendState a2a.TaskState
	// pollStates is consumed one state per tasks/{id} call; the last entry
	// repeats once exhausted.
	pollStates []a2a.TaskState

	tasks map[string]bool
	srv   *httptest.Server
}

func newFakeAgent(t *testing.T, name string) *fakeAgent {
	t.Helper()

	f := &fakeAgent{
		name:      name,
		sendState: a2a.TaskStateCompleted,
		tasks:     make(map[string]bool),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAgent) url() string { return f.srv.URL }

func (f *fakeAgent) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/" || r.URL.Path == a2a.WellKnownCardPath:
		f.writeJSON(w, a2a.AgentCard{
			Name:    f.name,
			URL:     f.srv.URL,
			Version: "1.0.0",
			Capabilities: a2a.AgentCapabilities{
				Streaming: true,
			},
		})

	case r.URL.Path == "/message/send":
		f.mu.Lock()
		delay := f.replyDelay
		state := f.sendState
		f.mu.Unlock()

		time.Sleep(delay)

		id := fmt.Sprintf("%s-task-1", f.name)
		f.mu.Lock()
		f.tasks[id] = true
		f.mu.Unlock()

		f.writeJSON(w, f.taskBody(id, state))

	case r.URL.Path == "/message/stream":
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunk := func(v any) {
			data, _ := json.Marshal(v)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		msg := a2a.CreateTextMessage(a2a.MessageRoleAssistant, "streamed ")
		chunk(a2a.StreamEvent{Type: a2a.StreamEventTypeMessage, TaskID: "stream-1", Message: &msg})
		msg2 := a2a.CreateTextMessage(a2a.MessageRoleAssistant, "answer")
		chunk(a2a.StreamEvent{Type: a2a.StreamEventTypeMessage, TaskID: "stream-1", Message: &msg2})
		chunk(a2a.StreamEvent{Type: a2a.StreamEventTypeStatus, TaskID: "stream-1",
			Status: &a2a.TaskStatus{State: a2a.TaskStateCompleted}})

	case strings.HasSuffix(r.URL.Path, "/cancel"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/cancel")
		f.writeJSON(w, f.taskBody(id, a2a.TaskStateCanceled))

	case strings.HasPrefix(r.URL.Path, "/tasks/"):
		id := strings.TrimPrefix(r.URL.Path, "/tasks/")
		f.mu.Lock()
		known := f.tasks[id]
		var state a2a.TaskState
		if len(f.pollStates) > 0 {
			state = f.pollStates[0]
			if len(f.pollStates) > 1 {
				f.pollStates = f.pollStates[1:]
			}
		} else {
			state = a2a.TaskStateCompleted
		}
		f.mu.Unlock()

		if !known {
			http.NotFound(w, r)
			return
		}
		f.writeJSON(w, f.taskBody(id, state))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAgent) taskBody(id string, state a2a.TaskState) a2a.Task {
	t := a2a.Task{
		ID:     id,
		Status: a2a.TaskStatus{State: state},
	}
	if state == a2a.TaskStateCompleted {
		t.Messages = []a2a.Message{
			a2a.CreateTextMessage(a2a.MessageRoleAssistant, "the answer"),
		}
	}
	return t
}

func (f *fakeAgent) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Dispatch.ImmediateTimeout = 200 * time.Millisecond
	cfg.Dispatch.PollInterval = 10 * time.Millisecond

	gw := New(cfg, nil)
	t.Cleanup(gw.Close)
	return gw
}

func TestRegisterListUnregister(t *testing.T) {
	agent := newFakeAgent(t, "echo")
	gw := newTestGateway(t)

	rec, err := gw.RegisterAgent(context.Background(), agent.url()+"/")
	require.NoError(t, err)
	assert.Equal(t, "echo", rec.Name())
	// Trailing slash is normalized away.
	assert.Equal(t, agent.url(), rec.URL)

	list := gw.ListAgents()
	require.Len(t, list, 1)

	_, removed, err := gw.UnregisterAgent(agent.url())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Empty(t, gw.ListAgents())
}

func TestRegisterAgentUnreachable(t *testing.T) {
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestSendMessageImmediate(t *testing.T) {
	agent := newFakeAgent(t, "fast")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	rec, err := gw.SendMessage(context.Background(), agent.url(), "hello", "")
	require.NoError(t, err)

	assert.Equal(t, task.StateCompleted, rec.State)
	assert.Equal(t, "the answer", rec.Result.Message)
	assert.Equal(t, "fast-task-1", rec.AgentTaskID)
}

func TestSendMessageUnregisteredAgent(t *testing.T) {
	gw := newTestGateway(t)

	_, err := gw.SendMessage(context.Background(), "http://nobody.local", "hello", "")
	assert.ErrorIs(t, err, task.ErrAgentNotRegistered)
}

func TestSendMessageSlowAgentGoesPendingThenCompletes(t *testing.T) {
	agent := newFakeAgent(t, "slow")
	agent.replyDelay = 500 * time.Millisecond
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	rec, err := gw.SendMessage(context.Background(), agent.url(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, task.StatePending, rec.State)

	require.Eventually(t, func() bool {
		got, gerr := gw.GetTaskResult(context.Background(), rec.ID)
		return gerr == nil && got.State == task.StateCompleted
	}, 3*time.Second, 20*time.Millisecond)

	got, err := gw.GetTaskResult(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "the answer", got.Result.Message)
}

func TestSendMessageTaskHandleReconciled(t *testing.T) {
	agent := newFakeAgent(t, "worker")
	agent.sendState = a2a.TaskStateWorking
	agent.pollStates = []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateCompleted}
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	rec, err := gw.SendMessage(context.Background(), agent.url(), "long job", "")
	require.NoError(t, err)
	assert.Equal(t, task.StateRunning, rec.State)

	require.Eventually(t, func() bool {
		got, gerr := gw.GetTaskResult(context.Background(), rec.ID)
		return gerr == nil && got.State == task.StateCompleted
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSendMessageStream(t *testing.T) {
	agent := newFakeAgent(t, "streamer")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	rec, err := gw.SendMessageStream(context.Background(), agent.url(), "stream it", "")
	require.NoError(t, err)

	assert.Equal(t, task.StateCompleted, rec.State)
	assert.Equal(t, "streamed answer", rec.Result.Message)
	assert.Equal(t, "stream-1", rec.AgentTaskID)
}

func TestCancelTask(t *testing.T) {
	agent := newFakeAgent(t, "cancellable")
	agent.sendState = a2a.TaskStateWorking
	agent.pollStates = []a2a.TaskState{a2a.TaskStateWorking}
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	rec, err := gw.SendMessage(context.Background(), agent.url(), "job", "")
	require.NoError(t, err)

	got, err := gw.CancelTask(context.Background(), rec.ID, "not needed")
	require.NoError(t, err)
	assert.Equal(t, task.StateCancelled, got.State)
}

func TestGetTaskListFilter(t *testing.T) {
	agent := newFakeAgent(t, "lister")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)

	_, err = gw.SendMessage(context.Background(), agent.url(), "one", "")
	require.NoError(t, err)
	_, err = gw.SendMessage(context.Background(), agent.url(), "two", "")
	require.NoError(t, err)

	all := gw.GetTaskList("", task.SortDescending, 0)
	assert.Len(t, all, 2)

	completed := gw.GetTaskList(task.StateCompleted, task.SortDescending, 0)
	assert.Len(t, completed, 2)

	pending := gw.GetTaskList(task.StatePending, task.SortDescending, 0)
	assert.Empty(t, pending)
}

func TestUnregisterRemovesTasks(t *testing.T) {
	agent := newFakeAgent(t, "doomed")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)
	_, err = gw.SendMessage(context.Background(), agent.url(), "hello", "")
	require.NoError(t, err)

	_, removed, err := gw.UnregisterAgent(agent.url())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, gw.GetTaskList("", task.SortDescending, 0))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	agent := newFakeAgent(t, "persisted")
	gw := newTestGateway(t)

	_, err := gw.RegisterAgent(context.Background(), agent.url())
	require.NoError(t, err)
	rec, err := gw.SendMessage(context.Background(), agent.url(), "hello", "")
	require.NoError(t, err)

	state := gw.Snapshot()

	fresh := newTestGateway(t)
	fresh.Restore(state)

	require.Len(t, fresh.ListAgents(), 1)
	got, err := fresh.GetTaskResult(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StateCompleted, got.State)
}
