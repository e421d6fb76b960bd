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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ============================================================================
// A2A CLIENT - HTTP+JSON Transport Client
// ============================================================================

// WellKnownCardPath is the fallback location for agent card discovery.
const WellKnownCardPath = "/.well-known/agent-card.json"

// Client is an A2A protocol client
type Client struct {
	httpClient *http.Client
	auth       *AuthCredentials
}

// AuthCredentials contains authentication information
type AuthCredentials struct {
	Type         string // "bearer", "apiKey"
	Token        string
	APIKey       string
	APIKeyHeader string // Header name for API key (default: "X-API-Key")
}

// ClientConfig contains configuration for the A2A client
type ClientConfig struct {
	Timeout time.Duration
	Auth    *AuthCredentials
}

// NewClient creates a new A2A protocol client
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{
			Timeout: 60 * time.Second,
		}
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		auth: cfg.Auth,
	}
}

// ============================================================================
// AGENT DISCOVERY
// ============================================================================

// DiscoverAgent fetches an agent's card. The base URL is tried first; if it
// does not serve a card, the well-known location is tried next.
func (c *Client) DiscoverAgent(ctx context.Context, agentURL string) (*AgentCard, error) {
	if card, err := c.fetchCard(ctx, agentURL); err == nil {
		return card, nil
	}

	wellKnownURL := strings.TrimRight(agentURL, "/") + WellKnownCardPath
	card, err := c.fetchCard(ctx, wellKnownURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover agent at %s: %w", agentURL, err)
	}
	return card, nil
}

func (c *Client) fetchCard(ctx context.Context, url string) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get agent card: %s - %s", resp.Status, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	if card.Name == "" {
		return nil, fmt.Errorf("response from %s is not an agent card", url)
	}

	return &card, nil
}

// ============================================================================
// MESSAGE SENDING (A2A Spec Section 7.1)
// ============================================================================

// SendMessage sends a message to an agent using A2A message/send.
// The returned task carries the remote agent's own task ID, which may differ
// from any identifier the caller uses locally. SendMessage never polls; a
// non-terminal task is returned as-is.
func (c *Client) SendMessage(ctx context.Context, agentURL string, message Message, sessionID string) (*Task, error) {
	sendURL := strings.TrimRight(agentURL, "/") + "/message/send"

	params := MessageSendParams{
		Message:   message,
		SessionID: sessionID,
	}

	return c.postTask(ctx, sendURL, params, "message send")
}

// SendTextMessage is a convenience method for sending simple text messages
func (c *Client) SendTextMessage(ctx context.Context, agentURL string, text string) (*Task, error) {
	return c.SendMessage(ctx, agentURL, CreateTextMessage(MessageRoleUser, text), "")
}

// ============================================================================
// TASK OPERATIONS (A2A Spec Sections 7.3-7.4)
// ============================================================================

// GetTask gets the current status of a task.
// Returns ErrTaskNotFound when the remote agent does not know the task.
func (c *Client) GetTask(ctx context.Context, agentURL string, taskID string) (*Task, error) {
	taskURL := strings.TrimRight(agentURL, "/") + "/tasks/" + taskID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, taskURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTaskNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamFailure(resp, "get task")
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}

	return &task, nil
}

// CancelTask cancels a running task
func (c *Client) CancelTask(ctx context.Context, agentURL string, taskID string, reason string) (*Task, error) {
	cancelURL := strings.TrimRight(agentURL, "/") + "/tasks/" + taskID + "/cancel"

	params := TaskCancelParams{
		TaskID: taskID,
		Reason: reason,
	}

	return c.postTask(ctx, cancelURL, params, "cancel task")
}

// postTask POSTs params as JSON and decodes a Task from the response.
func (c *Client) postTask(ctx context.Context, url string, params interface{}, op string) (*Task, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, c.upstreamFailure(resp, op)
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}

	return &task, nil
}

// upstreamFailure converts a non-2xx response into an error. When the body
// carries a structured TaskError it becomes an *UpstreamError; otherwise the
// raw status and body are preserved.
func (c *Client) upstreamFailure(resp *http.Response, op string) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error *TaskError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return &UpstreamError{Code: envelope.Error.Code, Message: envelope.Error.Message}
	}

	var taskErr TaskError
	if err := json.Unmarshal(body, &taskErr); err == nil && taskErr.Message != "" {
		return &UpstreamError{Code: taskErr.Code, Message: taskErr.Message}
	}

	return fmt.Errorf("%s failed: %s - %s", op, resp.Status, string(body))
}

// ============================================================================
// STREAMING (Server-Sent Events - A2A Spec 7.2)
// ============================================================================

// SendMessageStreaming sends a message to an agent with SSE streaming.
// Events are delivered on the returned channel until the stream ends or ctx
// is cancelled.
func (c *Client) SendMessageStreaming(ctx context.Context, agentURL string, message Message, sessionID string) (<-chan StreamEvent, error) {
	streamURL := strings.TrimRight(agentURL, "/") + "/message/stream"

	params := MessageSendParams{
		Message:   message,
		SessionID: sessionID,
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, streamURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSE stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.upstreamFailure(resp, "streaming")
	}

	return c.parseSSEStream(ctx, resp), nil
}

// parseSSEStream reads "data:" lines from an SSE response body and decodes
// each as a StreamEvent.
func (c *Client) parseSSEStream(ctx context.Context, resp *http.Response) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var event StreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

// ============================================================================
// UTILITY FUNCTIONS
// ============================================================================

// setAuthHeaders sets authentication headers on the request
func (c *Client) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}

	switch c.auth.Type {
	case "bearer":
		if c.auth.Token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.auth.Token))
		}
	case "apiKey":
		header := c.auth.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		if c.auth.APIKey != "" {
			req.Header.Set(header, c.auth.APIKey)
		}
	}
}
