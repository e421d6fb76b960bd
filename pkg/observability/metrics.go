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

// Package observability provides metrics and tracing for the gateway.
// Metrics go through the OpenTelemetry meter API with a Prometheus exporter;
// the scrape endpoint is served by the gateway's ops HTTP server.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Metrics records gateway-level measurements. A nil *Metrics is valid and
// records nothing, so call sites never need to guard.
type Metrics struct {
	dispatchDuration metric.Float64Histogram
	dispatches       metric.Int64Counter
	watchersActive   metric.Int64UpDownCounter
	polls            metric.Int64Counter
	toolCalls        metric.Int64Counter
	toolErrors       metric.Int64Counter
}

// InitMetrics sets up the meter provider with a Prometheus exporter and
// creates the gateway instruments. Returns the metrics recorder and the
// handler to mount at /metrics. Disabled config yields a nil recorder and
// nil handler.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*Metrics, http.Handler, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	promExporter, err := otelprom.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("a2a-gateway")

	dispatchDuration, err := meter.Float64Histogram(
		"a2a_gateway_dispatch_duration_seconds",
		metric.WithDescription("Dispatch duration until immediate reply or timeout fallback"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dispatch duration histogram: %w", err)
	}

	dispatches, err := meter.Int64Counter(
		"a2a_gateway_dispatches_total",
		metric.WithDescription("Total dispatches by outcome"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dispatches counter: %w", err)
	}

	watchersActive, err := meter.Int64UpDownCounter(
		"a2a_gateway_watchers_active",
		metric.WithDescription("Background task watchers currently running"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watchers gauge: %w", err)
	}

	polls, err := meter.Int64Counter(
		"a2a_gateway_polls_total",
		metric.WithDescription("Total background status polls by result"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create polls counter: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"a2a_gateway_tool_calls_total",
		metric.WithDescription("Total MCP tool calls"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"a2a_gateway_tool_errors_total",
		metric.WithDescription("Total MCP tool calls that returned an error envelope"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	m := &Metrics{
		dispatchDuration: dispatchDuration,
		dispatches:       dispatches,
		watchersActive:   watchersActive,
		polls:            polls,
		toolCalls:        toolCalls,
		toolErrors:       toolErrors,
	}

	return m, promhttp.Handler(), nil
}

// attr builds the single-label attribute set used by the counters.
func attr(key, value string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(key, value))
}

// RecordDispatch records one dispatch with its outcome label
// ("immediate", "pending", "error") and duration of the caller-facing wait.
func (m *Metrics) RecordDispatch(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatches.Add(ctx, 1, attr("outcome", outcome))
	m.dispatchDuration.Record(ctx, seconds)
}

// WatcherStarted records a background watcher starting.
func (m *Metrics) WatcherStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.watchersActive.Add(ctx, 1)
}

// WatcherStopped records a background watcher exiting.
func (m *Metrics) WatcherStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.watchersActive.Add(ctx, -1)
}

// RecordPoll records one background poll with its result label
// ("merged", "not_found", "error").
func (m *Metrics) RecordPoll(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.polls.Add(ctx, 1, attr("result", result))
}

// RecordToolCall records one MCP tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, isError bool) {
	if m == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, attr("tool", tool))
	if isError {
		m.toolErrors.Add(ctx, 1, attr("tool", tool))
	}
}
