package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sonara-ai/sonara/internal/observe"
)

// Handler consumes one event. Handlers run outside the publisher's
// critical path; returned errors are logged, never surfaced to the
// publisher.
type Handler func(ctx context.Context, ev Event) error

// DedupStore tracks which (call id, kind) pairs have already fired.
type DedupStore interface {
	// MarkOnce records the pair and reports whether this was its first
	// occurrence.
	MarkOnce(ctx context.Context, callID string, kind Kind) (bool, error)

	// Evict drops every mark held for callID.
	Evict(ctx context.Context, callID string) error
}

// Notifier is the process-wide publish/subscribe point for domain events.
// Subscribers are registered once at startup; Publish may be called from
// any goroutine afterwards.
type Notifier struct {
	dedup   DedupStore
	metrics *observe.Metrics

	mu   sync.RWMutex
	subs map[Kind][]Handler

	// wg tracks in-flight dispatches so tests and shutdown can wait for
	// side effects to settle.
	wg sync.WaitGroup
}

// NotifierOption is a functional option for configuring a Notifier.
type NotifierOption func(*Notifier)

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) NotifierOption {
	return func(n *Notifier) { n.metrics = m }
}

// NewNotifier creates a Notifier backed by the given dedup store. A nil
// store defaults to the in-process bounded store.
func NewNotifier(dedup DedupStore, opts ...NotifierOption) *Notifier {
	if dedup == nil {
		dedup = NewMemoryDedup()
	}
	n := &Notifier{
		dedup:   dedup,
		metrics: observe.DefaultMetrics(),
		subs:    make(map[Kind][]Handler),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Subscribe registers h for the given kind. Not safe to call concurrently
// with Publish; wire all subscribers during startup.
func (n *Notifier) Subscribe(kind Kind, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[kind] = append(n.subs[kind], h)
}

// Publish dispatches ev to its subscribers exactly once per
// (call id, kind). Duplicates are dropped silently. Dispatch runs on
// separate goroutines with no ordering guarantee between kinds; the
// publisher never blocks on subscriber side effects.
//
// When a call ends its dedup marks are evicted, keeping the store bounded
// by the number of live calls. Re-publishing a terminal event for an
// already-ended call is impossible upstream: the lifecycle manager's
// atomic transition check fails before any publish.
func (n *Notifier) Publish(ctx context.Context, ev Event) {
	if !Known(ev.Kind) {
		slog.Warn("event: dropping unknown kind", "kind", ev.Kind, "callId", ev.CallID)
		n.metrics.RecordEvent(ctx, string(ev.Kind), "unknown")
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	first, err := n.dedup.MarkOnce(ctx, ev.CallID, ev.Kind)
	if err != nil {
		// A broken dedup store degrades to at-least-once rather than
		// suppressing side effects entirely.
		slog.Error("event: dedup store failed, dispatching anyway",
			"kind", ev.Kind, "callId", ev.CallID, "error", err)
		first = true
	}
	if !first {
		slog.Debug("event: duplicate publish dropped", "kind", ev.Kind, "callId", ev.CallID)
		n.metrics.RecordEvent(ctx, string(ev.Kind), "duplicate")
		return
	}
	n.metrics.RecordEvent(ctx, string(ev.Kind), "dispatched")

	n.mu.RLock()
	handlers := append([]Handler(nil), n.subs[ev.Kind]...)
	n.mu.RUnlock()

	// Handlers outlive the publishing request. Keep its values for
	// tracing but drop its cancellation: the pair is already marked, so
	// a handler cut short by the request ending would be lost for good.
	dctx := context.WithoutCancel(ctx)

	for _, h := range handlers {
		n.wg.Add(1)
		go func(h Handler) {
			defer n.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event: subscriber panicked",
						"kind", ev.Kind, "callId", ev.CallID, "panic", r)
				}
			}()
			if err := h(dctx, ev); err != nil {
				slog.Error("event: subscriber failed",
					"kind", ev.Kind, "callId", ev.CallID, "error", err)
			}
		}(h)
	}

	if ev.Kind == CallEnded {
		if err := n.dedup.Evict(dctx, ev.CallID); err != nil {
			slog.Warn("event: dedup eviction failed", "callId", ev.CallID, "error", err)
		}
	}
}

// Wait blocks until all in-flight dispatches have returned. Intended for
// shutdown and tests.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
