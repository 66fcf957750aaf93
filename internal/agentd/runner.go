// Package agentd is the automated-agent runtime: it owns the live
// pipelines, binding at most one to a call, and exposes the small HTTP
// surface the orchestrator pokes to start and stop them.
package agentd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sonara-ai/sonara/internal/media"
	"github.com/sonara-ai/sonara/internal/observe"
	"github.com/sonara-ai/sonara/internal/pipeline"
)

// ErrStopped is returned by Start when a stop request for the same call
// lands while the room connection is still being dialed.
var ErrStopped = errors.New("agentd: pipeline stopped during start")

// StartRequest carries everything needed to bring up one call's
// pipeline. RoomName and Token come from the orchestrator; when either
// is empty the connector derives the room from the call id and mints
// its own agent credential.
type StartRequest struct {
	CallID   string `json:"callId"`
	RoomName string `json:"roomName,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Connector joins the automated agent into a call's room, returning the
// caller's audio track, the agent's playback source, and a closer that
// leaves the room.
type Connector interface {
	Connect(ctx context.Context, req StartRequest) (media.InputStream, media.OutputSource, func() error, error)
}

// PipelineFactory builds the pipeline for one call once its room
// connection is up.
type PipelineFactory func(callID string, out media.OutputSource) *pipeline.Pipeline

// running bundles a live pipeline with its room closer. The mutex
// covers the window between ownership reservation and pipeline
// construction, when a racing stop could observe partial state.
type running struct {
	mu       sync.Mutex
	pipeline *pipeline.Pipeline
	leave    func() error

	// stopped is set by a stop that won the registry release while the
	// owning start was still dialing; the start must abort.
	stopped bool

	// counted marks that the active-pipelines gauge was incremented for
	// this entry.
	counted bool
}

// Runner starts and stops pipelines, one per call.
type Runner struct {
	connector Connector
	factory   PipelineFactory
	registry  *Registry[*running]
	metrics   *observe.Metrics
}

// RunnerOption is a functional option for configuring a Runner.
type RunnerOption func(*Runner)

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner wires the agent runtime.
func NewRunner(connector Connector, factory PipelineFactory, opts ...RunnerOption) *Runner {
	r := &Runner{
		connector: connector,
		factory:   factory,
		registry:  NewRegistry[*running](),
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start joins the room, speaks the greeting, and attaches the caller's
// audio. A call that already owns a pipeline fails with
// ErrAlreadyRunning; the existing pipeline is left untouched. A stop
// racing the room dial wins: Start leaves the room again and fails with
// ErrStopped.
func (r *Runner) Start(ctx context.Context, req StartRequest) error {
	callID := req.CallID

	// Reserve ownership before any network work so a racing start never
	// dials a second room connection.
	placeholder := &running{}
	if err := r.registry.Acquire(callID, placeholder); err != nil {
		return err
	}

	in, out, leave, err := r.connector.Connect(ctx, req)
	if err != nil {
		r.registry.Release(callID)
		return fmt.Errorf("agentd: join room: %w", err)
	}

	p := r.factory(callID, out)
	placeholder.mu.Lock()
	if placeholder.stopped {
		// A stop already released the registry entry; nothing owns this
		// connection anymore.
		placeholder.mu.Unlock()
		if err := leave(); err != nil {
			slog.Warn("agent room leave failed", "callId", callID, "error", err)
		}
		return ErrStopped
	}
	placeholder.pipeline = p
	placeholder.leave = leave
	placeholder.mu.Unlock()

	if err := p.Start(ctx); err != nil {
		r.stop(callID)
		return fmt.Errorf("agentd: start pipeline: %w", err)
	}
	if err := p.AttachInput(ctx, in); err != nil {
		r.stop(callID)
		return fmt.Errorf("agentd: attach input: %w", err)
	}

	placeholder.mu.Lock()
	placeholder.counted = true
	placeholder.mu.Unlock()
	r.metrics.ActivePipelines.Add(ctx, 1)

	slog.Info("agent pipeline started", "callId", callID, "active", r.registry.Len())
	return nil
}

// Stop destroys the call's pipeline and leaves the room. Stopping a
// call with no pipeline is a no-op so stop requests can be retried.
func (r *Runner) Stop(callID string) bool {
	stopped := r.stop(callID)
	if stopped {
		slog.Info("agent pipeline stopped", "callId", callID, "active", r.registry.Len())
	}
	return stopped
}

func (r *Runner) stop(callID string) bool {
	entry, ok := r.registry.Release(callID)
	if !ok {
		return false
	}
	r.teardown(callID, entry)
	return true
}

// teardown destroys an entry released from the registry. An entry whose
// start is still dialing gets its stopped flag set instead; the start
// cleans up the connection itself.
func (r *Runner) teardown(callID string, entry *running) {
	entry.mu.Lock()
	entry.stopped = true
	p, leave, counted := entry.pipeline, entry.leave, entry.counted
	entry.mu.Unlock()

	if p != nil {
		p.Destroy()
	}
	if leave != nil {
		if err := leave(); err != nil {
			slog.Warn("agent room leave failed", "callId", callID, "error", err)
		}
	}
	if counted {
		r.metrics.ActivePipelines.Add(context.Background(), -1)
	}
}

// Active reports how many pipelines are live.
func (r *Runner) Active() int {
	return r.registry.Len()
}

// Shutdown stops every live pipeline.
func (r *Runner) Shutdown() {
	for _, entry := range r.registry.Drain() {
		var callID string
		entry.mu.Lock()
		if entry.pipeline != nil {
			callID = entry.pipeline.CallID()
		}
		entry.mu.Unlock()
		r.teardown(callID, entry)
	}
}
