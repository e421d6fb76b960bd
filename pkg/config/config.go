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

// Package config defines the gateway configuration: an optional YAML file
// with environment variable expansion, overlaid by well-known environment
// variables. Env vars win over the file so container deployments can tune
// a mounted config without editing it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kadirpekel/a2a-gateway/pkg/observability"
)

// TransportType identifies the MCP transport the gateway serves.
type TransportType string

const (
	TransportStdio          TransportType = "stdio"
	TransportStreamableHTTP TransportType = "streamable-http"
	TransportSSE            TransportType = "sse"
)

// StorageBackend identifies a persistence backend.
type StorageBackend string

const (
	// StorageBackendJSON snapshots state to JSON files in the data dir.
	StorageBackendJSON StorageBackend = "json"

	// StorageBackendSQLite stores snapshots in a SQLite database.
	StorageBackendSQLite StorageBackend = "sqlite"
)

// ServerConfig configures the MCP-facing server.
type ServerConfig struct {
	// Transport protocol (stdio, streamable-http, sse).
	Transport TransportType `yaml:"transport,omitempty"`

	// Host to bind to for the HTTP transports.
	Host string `yaml:"host,omitempty"`

	// Port to listen on for the HTTP transports.
	Port int `yaml:"port,omitempty"`

	// Path the streamable HTTP transport is mounted at.
	Path string `yaml:"path,omitempty"`
}

// DispatchConfig tunes the send race and background reconciliation.
type DispatchConfig struct {
	// ImmediateTimeout is how long send_message waits for a synchronous
	// reply before returning a pending task handle.
	ImmediateTimeout time.Duration `yaml:"immediate_timeout,omitempty"`

	// PollInterval is the delay between background status polls.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// MaxPolls bounds how many times a background watcher polls before
	// declaring the task failed. Negative means unbounded.
	MaxPolls int `yaml:"max_polls,omitempty"`
}

// StorageConfig configures state persistence.
type StorageConfig struct {
	// Backend selects the persistence backend (json, sqlite).
	Backend StorageBackend `yaml:"backend,omitempty"`

	// DataDir is where snapshots live.
	DataDir string `yaml:"data_dir,omitempty"`

	// SaveInterval is the period between background snapshot saves.
	SaveInterval time.Duration `yaml:"save_interval,omitempty"`
}

// ClientConfig configures outbound A2A calls.
type ClientConfig struct {
	// Timeout bounds a single outbound HTTP request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ObservabilityConfig configures metrics, tracing, and the ops endpoint.
type ObservabilityConfig struct {
	Metrics observability.MetricsConfig `yaml:"metrics,omitempty"`
	Tracing observability.TracerConfig  `yaml:"tracing,omitempty"`

	// OpsAddr is the listen address for /health and /metrics.
	// Empty disables the ops server.
	OpsAddr string `yaml:"ops_addr,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format: simple or verbose.
	Format string `yaml:"format,omitempty"`

	// File redirects logs to a file instead of stderr.
	File string `yaml:"file,omitempty"`
}

// Config is the root gateway configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty"`
	Dispatch      DispatchConfig      `yaml:"dispatch,omitempty"`
	Storage       StorageConfig       `yaml:"storage,omitempty"`
	Client        ClientConfig        `yaml:"client,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
}

// SetDefaults fills in zero values.
func (c *Config) SetDefaults() {
	if c.Server.Transport == "" {
		c.Server.Transport = TransportStdio
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Path == "" {
		c.Server.Path = "/mcp"
	}

	if c.Dispatch.ImmediateTimeout == 0 {
		c.Dispatch.ImmediateTimeout = 3 * time.Second
	}
	if c.Dispatch.PollInterval == 0 {
		c.Dispatch.PollInterval = 2 * time.Second
	}
	if c.Dispatch.MaxPolls == 0 {
		c.Dispatch.MaxPolls = 900
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendJSON
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SaveInterval == 0 {
		c.Storage.SaveInterval = 5 * time.Minute
	}

	if c.Client.Timeout == 0 {
		c.Client.Timeout = 60 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportStreamableHTTP, TransportSSE:
	default:
		return fmt.Errorf("unknown transport %q (expected stdio, streamable-http, or sse)", c.Server.Transport)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}

	switch c.Storage.Backend {
	case StorageBackendJSON, StorageBackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (expected json or sqlite)", c.Storage.Backend)
	}

	if c.Dispatch.ImmediateTimeout < 0 {
		return fmt.Errorf("immediate_timeout must not be negative")
	}
	if c.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	return nil
}

// applyEnv overlays well-known environment variables onto the config.
func (c *Config) applyEnv() error {
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		c.Server.Transport = TransportType(v)
	}
	if v := os.Getenv("MCP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MCP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MCP_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("MCP_PATH"); v != "" {
		c.Server.Path = v
	}
	if v := os.Getenv("MCP_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = StorageBackend(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMMEDIATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IMMEDIATE_TIMEOUT %q: %w", v, err)
		}
		c.Dispatch.ImmediateTimeout = d
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err)
		}
		c.Dispatch.PollInterval = d
	}
	return nil
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.Storage.DataDir, 0755)
}
