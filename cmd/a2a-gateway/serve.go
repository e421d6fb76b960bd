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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/a2a-gateway/pkg/config"
	"github.com/kadirpekel/a2a-gateway/pkg/gateway"
	"github.com/kadirpekel/a2a-gateway/pkg/observability"
	"github.com/kadirpekel/a2a-gateway/pkg/storage"
)

// ServeCmd starts the gateway.
type ServeCmd struct {
	Transport string `help:"MCP transport (stdio, streamable-http, sse)." env:"MCP_TRANSPORT"`
	Port      int    `help:"Port for the HTTP transports." env:"MCP_PORT"`
	DataDir   string `name:"data-dir" help:"Directory for persisted state." env:"MCP_DATA_DIR"`

	// DrainTimeout bounds how long shutdown waits for background watchers.
	DrainTimeout time.Duration `name:"drain-timeout" help:"Max time to wait for in-flight tasks on shutdown." default:"10s"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Transport != "" {
		cfg.Server.Transport = config.TransportType(c.Transport)
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.DataDir != "" {
		cfg.Storage.DataDir = c.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tracerProvider, err := observability.InitGlobalTracer(ctx, cfg.Observability.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	metrics, metricsHandler, err := observability.InitMetrics(ctx, cfg.Observability.Metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	gw := gateway.New(cfg, metrics)
	defer gw.Close()

	state, err := backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	gw.Restore(state)

	saver := storage.NewSaver(backend, gw.Snapshot, cfg.Storage.SaveInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return gw.Serve(gctx)
	})

	g.Go(func() error {
		return saver.Run(gctx)
	})

	if cfg.Observability.OpsAddr != "" {
		g.Go(func() error {
			return gw.ServeOps(gctx, cfg.Observability.OpsAddr, metricsHandler)
		})
	}

	err = g.Wait()

	// Give outstanding watchers a bounded chance to settle, then persist
	// whatever state they reached.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), c.DrainTimeout)
	defer drainCancel()
	if derr := gw.Drain(drainCtx); derr != nil {
		slog.Warn("Shutdown drain timed out; some tasks remain in flight")
	}
	if serr := saver.SaveNow(); serr != nil {
		slog.Error("Final state save failed", "error", serr)
	}

	if shutdownable, ok := tracerProvider.(interface {
		Shutdown(context.Context) error
	}); ok {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if terr := shutdownable.Shutdown(shutdownCtx); terr != nil {
			slog.Warn("Tracer shutdown failed", "error", terr)
		}
	}

	return err
}

// newBackend builds the configured persistence backend.
func newBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		return storage.NewSQLiteBackend(cfg.Storage.DataDir)
	default:
		return storage.NewJSONBackend(cfg.Storage.DataDir)
	}
}
