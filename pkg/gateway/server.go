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
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	a2agateway "github.com/kadirpekel/a2a-gateway"
	"github.com/kadirpekel/a2a-gateway/pkg/config"
)

const serverInstructions = `This gateway bridges MCP to A2A agents. Register an agent with
register_agent, then talk to it with send_message. Slow agents return a
pending task ID; poll get_task_result until the task reaches a terminal
state (completed, error, cancelled).`

// buildMCPServer creates the MCP server with the gateway's tools attached.
func (g *Gateway) buildMCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		"a2a-gateway",
		a2agateway.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)
	g.registerTools(s)
	return s
}

// Serve runs the MCP server on the configured transport until ctx is
// cancelled (HTTP transports) or the client closes the session (stdio).
func (g *Gateway) Serve(ctx context.Context) error {
	s := g.buildMCPServer()

	switch g.cfg.Server.Transport {
	case config.TransportStdio:
		slog.Info("Serving MCP on stdio")
		stdioServer := server.NewStdioServer(s)
		return stdioServer.Listen(ctx, os.Stdin, os.Stdout)

	case config.TransportStreamableHTTP:
		addr := fmt.Sprintf("%s:%d", g.cfg.Server.Host, g.cfg.Server.Port)
		httpServer := server.NewStreamableHTTPServer(s,
			server.WithEndpointPath(g.cfg.Server.Path),
		)
		slog.Info("Serving MCP on streamable HTTP", "addr", addr, "path", g.cfg.Server.Path)
		return runUntilCancelled(ctx, addr, httpServer.Start, httpServer.Shutdown)

	case config.TransportSSE:
		addr := fmt.Sprintf("%s:%d", g.cfg.Server.Host, g.cfg.Server.Port)
		sseServer := server.NewSSEServer(s)
		slog.Info("Serving MCP on SSE", "addr", addr)
		return runUntilCancelled(ctx, addr, sseServer.Start, sseServer.Shutdown)

	default:
		return fmt.Errorf("unknown transport %q", g.cfg.Server.Transport)
	}
}

// runUntilCancelled starts a blocking listener and shuts it down when ctx is
// cancelled. A listener error before cancellation is returned as-is.
func runUntilCancelled(ctx context.Context, addr string, start func(string) error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("MCP server shutdown failed", "error", err)
		}
		<-errCh
		return nil
	}
}
