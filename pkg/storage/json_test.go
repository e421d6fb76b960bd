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

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
	"github.com/kadirpekel/a2a-gateway/pkg/agent"
	"github.com/kadirpekel/a2a-gateway/pkg/task"
)

func sampleState() *State {
	return &State{
		Agents: map[string]*agent.Record{
			"http://a.local": {
				URL:  "http://a.local",
				Card: &a2a.AgentCard{Name: "agent-a", Version: "1.0.0"},
			},
		},
		Tasks: map[string]*task.Record{
			"t1": {
				ID:       "t1",
				AgentURL: "http://a.local",
				Request:  "hello",
				State:    task.StateCompleted,
				Result:   &task.Result{Message: "done"},
			},
		},
	}
}

func TestJSONBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()

	b, err := NewJSONBackend(dir)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Save(sampleState()))

	// Both snapshot files exist.
	_, err = os.Stat(filepath.Join(dir, agentsFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, tasksFileName))
	require.NoError(t, err)

	loaded, err := b.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Agents, 1)
	require.Len(t, loaded.Tasks, 1)
	assert.Equal(t, "agent-a", loaded.Agents["http://a.local"].Card.Name)
	assert.Equal(t, task.StateCompleted, loaded.Tasks["t1"].State)
	assert.Equal(t, "done", loaded.Tasks["t1"].Result.Message)
}

func TestJSONBackendLoadMissingFiles(t *testing.T) {
	b, err := NewJSONBackend(t.TempDir())
	require.NoError(t, err)

	state, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Agents)
	assert.Empty(t, state.Tasks)
}

func TestJSONBackendLoadMalformedDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, agentsFileName), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, tasksFileName), []byte("[broken"), 0644))

	b, err := NewJSONBackend(dir)
	require.NoError(t, err)

	state, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Agents)
	assert.Empty(t, state.Tasks)
}

func TestJSONBackendCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	_, err := NewJSONBackend(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestJSONBackendSaveOverwrites(t *testing.T) {
	b, err := NewJSONBackend(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, b.Save(sampleState()))
	require.NoError(t, b.Save(NewState()))

	loaded, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.Agents)
	assert.Empty(t, loaded.Tasks)
}
