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

// Package task implements the gateway's asynchronous task lifecycle:
// the in-memory task store, the dispatch race between a synchronous reply
// and a background continuation, the background watcher that reconciles
// remote state, and the read-side query service.
//
// Every task carries two identities. The gateway ID is assigned at dispatch
// time and is the only key callers ever see. The remote agent may assign its
// own task ID for the same unit of work; once learned it is used for all
// outbound polls and cancels, but the store is never rekeyed.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
)

// ErrNotFound is returned when a caller references an unknown gateway task ID.
var ErrNotFound = errors.New("task not found")

// ErrAgentNotRegistered is returned when a dispatch references an unknown
// agent URL.
var ErrAgentNotRegistered = errors.New("agent not registered")

// State represents the gateway-side state of a task.
type State string

const (
	// StatePending means the remote call is still in flight and no reply
	// has been seen yet.
	StatePending State = "pending"

	// StateRunning means the remote agent acknowledged the task and is
	// working on it.
	StateRunning State = "running"

	// StateStreaming means the remote agent is streaming incremental output.
	StateStreaming State = "streaming"

	// StateCompleted means the task finished successfully.
	StateCompleted State = "completed"

	// StateError means the task failed, upstream or in transit.
	StateError State = "error"

	// StateCancelled means the task was cancelled.
	StateCancelled State = "cancelled"
)

// IsTerminal returns whether this state permits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateError, StateCancelled:
		return true
	}
	return false
}

// ValidState reports whether s is one of the defined task states.
func ValidState(s State) bool {
	switch s {
	case StatePending, StateRunning, StateStreaming,
		StateCompleted, StateError, StateCancelled:
		return true
	}
	return false
}

// Result is the payload incorporated from a remote reply, success or error.
type Result struct {
	// Message is the extracted text of the reply, or a human-readable
	// error description.
	Message string `json:"message,omitempty"`

	// Artifacts produced by the remote agent.
	Artifacts []a2a.Artifact `json:"artifacts,omitempty"`

	// ErrorCode is the remote error code for error results.
	ErrorCode string `json:"errorCode,omitempty"`
}

// Record is the gateway's bookkeeping entry for one delegated unit of work.
type Record struct {
	// ID is the gateway-assigned identity. Immutable for the record's
	// lifetime and globally unique.
	ID string `json:"id"`

	// AgentTaskID is the remote agent's identity for the same task.
	// Empty until the remote assigns one; once set it is never replaced
	// by a different value.
	AgentTaskID string `json:"agentTaskId,omitempty"`

	// AgentURL is the registered agent this task was dispatched to.
	AgentURL string `json:"agentUrl"`

	// Request is the original input text, retained for auditability.
	Request string `json:"request"`

	// SessionID is the optional conversation session the caller supplied.
	SessionID string `json:"sessionId,omitempty"`

	State  State   `json:"state"`
	Result *Result `json:"result,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RemoteID returns the identifier to use for outbound remote calls:
// the agent-assigned ID when known, the gateway ID otherwise.
func (r *Record) RemoteID() string {
	if r.AgentTaskID != "" {
		return r.AgentTaskID
	}
	return r.ID
}

// Clone returns a copy of the record that shares no mutable state with the
// original.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Result != nil {
		res := *r.Result
		if len(r.Result.Artifacts) > 0 {
			res.Artifacts = make([]a2a.Artifact, len(r.Result.Artifacts))
			copy(res.Artifacts, r.Result.Artifacts)
		}
		cp.Result = &res
	}
	return &cp
}

// Invoker is the outbound boundary to a remote A2A agent. *a2a.Client
// satisfies it; tests substitute stubs.
type Invoker interface {
	SendMessage(ctx context.Context, agentURL string, message a2a.Message, sessionID string) (*a2a.Task, error)
	GetTask(ctx context.Context, agentURL string, taskID string) (*a2a.Task, error)
	CancelTask(ctx context.Context, agentURL string, taskID string, reason string) (*a2a.Task, error)
}
