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
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	a2agateway "github.com/kadirpekel/a2a-gateway"
)

// healthPayload is the /health response body.
type healthPayload struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Agents   int    `json:"agents"`
	Tasks    int    `json:"tasks"`
	Watchers int    `json:"watchers"`
}

// OpsRouter builds the operations router: /health and, when metrics are
// enabled, /metrics. Separate from the MCP transport so the protocol surface
// and the monitoring surface never share a listener.
func (g *Gateway) OpsRouter(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthPayload{
			Status:   "ok",
			Version:  a2agateway.Version,
			Agents:   g.agents.Count(),
			Tasks:    g.tasks.Count(),
			Watchers: g.dispatcher.Watching(),
		})
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return r
}

// ServeOps runs the operations HTTP server on addr until ctx is cancelled.
func (g *Gateway) ServeOps(ctx context.Context, addr string, metricsHandler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.OpsRouter(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("Serving ops endpoints", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Ops server shutdown failed", "error", err)
		}
		<-errCh
		return nil
	}
}
