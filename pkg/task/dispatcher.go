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

package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/a2a-gateway/pkg/a2a"
	"github.com/kadirpekel/a2a-gateway/pkg/agent"
	"github.com/kadirpekel/a2a-gateway/pkg/observability"
)

const (
	// DefaultImmediateTimeout bounds how long a caller waits for a
	// synchronous reply before getting a pending handle instead.
	// A latency knob only; an elapsed timeout never fails the task.
	DefaultImmediateTimeout = 3 * time.Second

	// DefaultPollInterval is the sleep between background status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxPolls bounds a watcher's lifetime. The source of this
	// design had no bound at all; without one, a remote task that never
	// terminates would be polled forever.
	DefaultMaxPolls = 900
)

// pendingMessage is the placeholder result on a task that outran the
// immediate-response window.
const pendingMessage = "The agent is still working on this task. Use get_task_result with this task ID to retrieve the result."

// Options configures the dispatch race and the background watchers.
type Options struct {
	ImmediateTimeout time.Duration
	PollInterval     time.Duration
	MaxPolls         int
}

func (o Options) withDefaults() Options {
	if o.ImmediateTimeout <= 0 {
		o.ImmediateTimeout = DefaultImmediateTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxPolls == 0 {
		o.MaxPolls = DefaultMaxPolls
	}
	return o
}

// reply is the resolution of one outbound remote call.
type reply struct {
	task *a2a.Task
	err  error
}

// Dispatcher runs the race between a synchronous reply and the background
// continuation. The remote call is started as shielded work: cancelling the
// caller's wait never cancels the call, so a slow reply is still captured.
type Dispatcher struct {
	store   *Store
	agents  *agent.Registry
	invoker Invoker
	opts    Options
	metrics *observability.Metrics
	tracer  trace.Tracer

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(store *Store, agents *agent.Registry, invoker Invoker, opts Options, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		store:    store,
		agents:   agents,
		invoker:  invoker,
		opts:     opts.withDefaults(),
		metrics:  metrics,
		tracer:   observability.GetTracer("a2a-gateway/task"),
		watchers: make(map[string]context.CancelFunc),
	}
}

// Dispatch sends text to the agent at agentURL and returns a task record:
// terminal or running when the agent replied within the immediate-response
// window, pending otherwise. Ordinary remote failures come back as terminal
// error records, not as errors; only an unregistered agent URL is an error.
func (d *Dispatcher) Dispatch(ctx context.Context, agentURL, text, sessionID string) (*Record, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(attribute.String("agent.url", agentURL)))
	defer span.End()

	agentRec, ok := d.agents.Get(agentURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotRegistered, agentURL)
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("task.id", id))

	// The call must survive both the immediate-timeout window and the
	// caller hanging up, so it runs on a context detached from ctx's
	// cancellation. The buffered channel lets it finish even if nobody
	// is waiting anymore.
	callCtx := context.WithoutCancel(ctx)
	inflight := make(chan reply, 1)
	started := time.Now()

	go func() {
		remote, err := d.invoker.SendMessage(callCtx, agentURL, a2a.CreateTextMessage(a2a.MessageRoleUser, text), sessionID)
		inflight <- reply{task: remote, err: err}
	}()

	timer := time.NewTimer(d.opts.ImmediateTimeout)
	defer timer.Stop()

	rec := &Record{
		ID:        id,
		AgentURL:  agentURL,
		Request:   text,
		SessionID: sessionID,
		State:     StatePending,
	}

	select {
	case r := <-inflight:
		out := classify(r.task, r.err)
		out.apply(rec)
		if err := d.store.Create(rec); err != nil {
			return nil, err
		}

		outcome := "immediate"
		if rec.State == StateError {
			outcome = "error"
		}
		d.metrics.RecordDispatch(ctx, outcome, time.Since(started).Seconds())
		slog.Info("Dispatch resolved synchronously",
			"task", id, "agent", agentRec.Name(), "state", rec.State)

		// A task-shaped reply means multi-step work: the immediate
		// window only bounded the first reply, so reconciliation
		// continues in the background regardless.
		if !rec.State.IsTerminal() {
			d.startWatcher(id, nil)
		}

	case <-timer.C:
		d.seedPending(ctx, rec, inflight, agentRec.Name(), started)

	case <-ctx.Done():
		// The caller abandoned the wait. The work is shielded and
		// continues; only the synchronous response path is given up.
		d.seedPending(ctx, rec, inflight, agentRec.Name(), started)
	}

	stored, ok := d.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return stored, nil
}

// seedPending inserts the pending record and hands the in-flight call to a
// background watcher.
func (d *Dispatcher) seedPending(ctx context.Context, rec *Record, inflight <-chan reply, agentName string, started time.Time) {
	rec.State = StatePending
	rec.Result = &Result{Message: pendingMessage}
	if err := d.store.Create(rec); err != nil {
		slog.Error("Failed to seed pending task", "task", rec.ID, "error", err)
		return
	}

	d.metrics.RecordDispatch(ctx, "pending", time.Since(started).Seconds())
	slog.Info("Dispatch deferred to background",
		"task", rec.ID, "agent", agentName)

	d.startWatcher(rec.ID, inflight)
}

// startWatcher launches the background reconciliation loop for a task and
// tracks it in the outstanding set.
func (d *Dispatcher) startWatcher(id string, inflight <-chan reply) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if _, running := d.watchers[id]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.watchers[id] = cancel
	d.wg.Add(1)
	d.metrics.WatcherStarted(ctx)

	go d.runWatcher(ctx, id, inflight)
}

// finishWatcher removes a watcher from the outstanding set on loop exit.
func (d *Dispatcher) finishWatcher(ctx context.Context, id string) {
	d.mu.Lock()
	if cancel, ok := d.watchers[id]; ok {
		cancel()
		delete(d.watchers, id)
	}
	d.mu.Unlock()

	d.metrics.WatcherStopped(ctx)
	d.wg.Done()
}

// Watching returns the number of outstanding background watchers.
func (d *Dispatcher) Watching() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.watchers)
}

// Drain blocks until all outstanding watchers have exited, or ctx expires.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels all outstanding watchers and waits for them to exit.
// No new watchers start afterwards.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for _, cancel := range d.watchers {
		cancel()
	}
	d.mu.Unlock()

	d.wg.Wait()
}
