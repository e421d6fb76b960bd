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
	"strings"
)

// ============================================================================
// A2A MESSAGE HELPER FUNCTIONS
// ============================================================================

// CreateTextMessage is a helper to create a simple text message
func CreateTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Parts: []Part{
			{
				Type: PartTypeText,
				Text: text,
			},
		},
	}
}

// ExtractTextFromMessage extracts all text content from an A2A message,
// joining text parts with spaces.
func ExtractTextFromMessage(msg *Message) string {
	if msg == nil {
		return ""
	}
	var texts []string
	for _, part := range msg.Parts {
		if part.Type == PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}

// ExtractTextFromTask extracts text content from a task. The status message
// takes priority; assistant messages and artifact text are the fallback.
func ExtractTextFromTask(task *Task) string {
	if task == nil {
		return ""
	}

	if text := ExtractTextFromMessage(task.Status.Message); text != "" {
		return text
	}

	var texts []string

	for _, msg := range task.Messages {
		if msg.Role == MessageRoleAssistant {
			if text := ExtractTextFromMessage(&msg); text != "" {
				texts = append(texts, text)
			}
		}
	}

	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if part.Type == PartTypeText {
				texts = append(texts, part.Text)
			}
		}
	}

	return strings.Join(texts, "\n")
}
