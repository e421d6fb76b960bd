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
	"errors"
	"fmt"
)

// ErrTaskNotFound is returned when the remote agent does not know the task ID.
// Callers polling a freshly dispatched task treat this as remote bookkeeping
// lag, not as a failure.
var ErrTaskNotFound = errors.New("a2a: task not found on remote agent")

// UpstreamError is a structured failure reported by the remote agent itself,
// as opposed to a transport-level failure reaching it.
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("agent error: %s", e.Message)
	}
	return fmt.Sprintf("agent error: %s (code: %s)", e.Message, e.Code)
}

// AsUpstreamError unwraps err into an *UpstreamError if it is one.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
