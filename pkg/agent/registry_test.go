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

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
)

func card(name string) *a2a.AgentCard {
	return &a2a.AgentCard{Name: name, Version: "1.0.0"}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	rec, err := r.Register("http://a.local", card("agent-a"))
	require.NoError(t, err)
	assert.Equal(t, "agent-a", rec.Name())
	assert.False(t, rec.RegisteredAt.IsZero())

	got, ok := r.Get("http://a.local")
	require.True(t, ok)
	assert.Equal(t, "agent-a", got.Name())

	_, ok = r.Get("http://missing.local")
	assert.False(t, ok)
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("", card("x"))
	assert.Error(t, err)

	_, err = r.Register("http://a.local", nil)
	assert.Error(t, err)
}

func TestRegistryReRegisterRefreshesCard(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("http://a.local", card("old-name"))
	require.NoError(t, err)
	_, err = r.Register("http://a.local", card("new-name"))
	require.NoError(t, err)

	got, _ := r.Get("http://a.local")
	assert.Equal(t, "new-name", got.Name())
	assert.Equal(t, 1, r.Count())
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("http://a.local", card("agent-a"))
	require.NoError(t, err)

	rec, err := r.Unregister("http://a.local")
	require.NoError(t, err)
	assert.Equal(t, "agent-a", rec.Name())
	assert.Equal(t, 0, r.Count())

	_, err = r.Unregister("http://a.local")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, url := range []string{"http://c.local", "http://a.local", "http://b.local"} {
		_, err := r.Register(url, card(url))
		require.NoError(t, err)
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "http://a.local", list[0].URL)
	assert.Equal(t, "http://b.local", list[1].URL)
	assert.Equal(t, "http://c.local", list[2].URL)
}

func TestRegistrySnapshotRestore(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("http://a.local", card("agent-a"))
	require.NoError(t, err)

	snapshot := r.Snapshot()

	restored := NewRegistry()
	restored.Restore(snapshot)
	assert.Equal(t, 1, restored.Count())

	got, ok := restored.Get("http://a.local")
	require.True(t, ok)
	assert.Equal(t, "agent-a", got.Name())
}

func TestRegistryRestoreSkipsCorruptEntries(t *testing.T) {
	r := NewRegistry()
	r.Restore(map[string]*Record{
		"http://good.local": {URL: "http://good.local", Card: card("good")},
		"http://bad.local":  {URL: "http://bad.local"}, // no card
		"":                  {URL: "", Card: card("orphan")},
	})

	assert.Equal(t, 1, r.Count())
	_, ok := r.Get("http://good.local")
	assert.True(t, ok)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("http://a.local", card("agent-a"))
	require.NoError(t, err)

	got, ok := r.Get("http://a.local")
	require.True(t, ok)
	got.URL = "http://mutated.local"

	again, _ := r.Get("http://a.local")
	assert.Equal(t, "http://a.local", again.URL)

	list := r.List()
	require.Len(t, list, 1)
	list[0].URL = "http://mutated.local"

	again, _ = r.Get("http://a.local")
	assert.Equal(t, "http://a.local", again.URL)
}

func TestRecordNameFallsBackToURL(t *testing.T) {
	rec := &Record{URL: "http://a.local"}
	assert.Equal(t, "http://a.local", rec.Name())
}
