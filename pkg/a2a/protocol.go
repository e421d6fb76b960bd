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

// Package a2a implements the client side of the Agent-to-Agent (A2A) Protocol
// over HTTP+JSON transport.
// Specification: https://a2a-protocol.org/latest/specification/
package a2a

import (
	"time"
)

// ============================================================================
// AGENT CARD - Agent Discovery & Capability Advertisement
// Spec Section 5.5: AgentCard Object Structure
// ============================================================================

// AgentCard represents an A2A agent's capabilities and metadata
type AgentCard struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`

	Provider *AgentProvider `json:"provider,omitempty"`

	Capabilities AgentCapabilities `json:"capabilities"`
	Skills       []AgentSkill      `json:"skills,omitempty"`
}

// AgentProvider describes the provider of an agent (Section 5.5.1)
type AgentProvider struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities describes what an agent can do (Section 5.5.2)
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	MultiTurn         bool `json:"multiTurn,omitempty"`
	PushNotifications bool `json:"pushNotifications,omitempty"`
}

// AgentSkill describes a specific skill the agent possesses (Section 5.5.4)
type AgentSkill struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ============================================================================
// TASK - Unit of Work in A2A Protocol
// Spec Section 6.1: Task Object
// ============================================================================

// Task represents a unit of work on the remote agent's side.
// Task IDs are assigned by the remote agent and belong to its namespace,
// not the gateway's.
type Task struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId,omitempty"`
	Status    TaskStatus `json:"status"`
	Messages  []Message  `json:"messages,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Error     *TaskError `json:"error,omitempty"`
}

// TaskStatus represents the status of a task (Section 6.2)
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// TaskState represents the state of a task (Section 6.3)
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateStreaming     TaskState = "streaming"
	TaskStateInputRequired TaskState = "input_required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
)

// IsTerminal returns whether the remote task can no longer change state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// TaskError represents an error reported by the remote agent
type TaskError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ============================================================================
// MESSAGE - Conversation Messages
// Spec Section 6.4: Message Object
// ============================================================================

// Message represents a message in a conversation
type Message struct {
	Role  MessageRole `json:"role"`
	Parts []Part      `json:"parts"`
}

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Part represents a part of a message (union type, Section 6.5)
type Part struct {
	Type PartType `json:"type"`

	// Text part (Section 6.5.1)
	Text string `json:"text,omitempty"`

	// Data part (Section 6.5.3)
	Data     interface{} `json:"data,omitempty"`
	DataType string      `json:"dataType,omitempty"`
}

// PartType represents the type of message part
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeData PartType = "data"
)

// ============================================================================
// ARTIFACT - Task Output Artifacts
// Spec Section 6.7: Artifact Object
// ============================================================================

// Artifact represents an output artifact from a task
type Artifact struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
}

// ============================================================================
// RPC METHOD PARAMETERS
// Spec Section 7: Protocol RPC Methods
// ============================================================================

// MessageSendParams represents parameters for message/send (Section 7.1.1)
type MessageSendParams struct {
	Message   Message `json:"message"`
	TaskID    string  `json:"taskId,omitempty"`
	SessionID string  `json:"sessionId,omitempty"`
}

// TaskQueryParams represents parameters for tasks/get (Section 7.3.1)
type TaskQueryParams struct {
	TaskID        string `json:"taskId"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// TaskCancelParams represents parameters for tasks/cancel (Section 7.4.1)
type TaskCancelParams struct {
	TaskID string `json:"taskId"`
	Reason string `json:"reason,omitempty"`
}

// ============================================================================
// STREAMING - Server-Sent Events (Spec Section 7.2)
// ============================================================================

// StreamEvent represents a streaming event
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	TaskID    string          `json:"taskId"`
	Message   *Message        `json:"message,omitempty"`
	Artifact  *Artifact       `json:"artifact,omitempty"`
	Status    *TaskStatus     `json:"status,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// StreamEventType represents the type of streaming event
type StreamEventType string

const (
	StreamEventTypeMessage  StreamEventType = "message"
	StreamEventTypeArtifact StreamEventType = "artifact"
	StreamEventTypeStatus   StreamEventType = "status"
	StreamEventTypeDone     StreamEventType = "done"
	StreamEventTypeError    StreamEventType = "error"
)

// ============================================================================
// AGENT DIRECTORY - Discovery
// ============================================================================

// AgentDirectory represents a collection of available agents
type AgentDirectory struct {
	Agents []AgentCard `json:"agents"`
	Total  int         `json:"total"`
}
