// Package observe provides observability primitives for Sonara:
// OpenTelemetry metrics, tracing helpers, and gin middleware tying them
// together.
//
// Metrics are recorded through the OTel Metrics API and exported via a
// Prometheus reader set up by [InitProvider], so the standard /metrics
// endpoint keeps working. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all Sonara metrics.
const meterName = "github.com/sonara-ai/sonara"

// Metrics holds the OTel instruments for the orchestration engine. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// STTDuration tracks time from stream start to each finalized
	// transcript.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks reasoning-provider latency per reply.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks synthesis latency per reply.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end latency of one conversational turn,
	// finalized transcript to last emitted frame.
	TurnDuration metric.Float64Histogram

	// CallTransitions counts lifecycle transitions. Attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	CallTransitions metric.Int64Counter

	// EventsPublished counts notifier publishes by kind and outcome
	// (dispatched, duplicate, unknown).
	EventsPublished metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActivePipelines tracks live turn-taking pipelines in this process.
	ActivePipelines metric.Int64UpDownCounter

	// ActiveCalls tracks calls currently in ACTIVE or HANDED_OFF.
	ActiveCalls metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP latency by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, tuned for voice
// latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("sonara.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("sonara.llm.duration",
		metric.WithDescription("Latency of reasoning-provider completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("sonara.tts.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("sonara.turn.duration",
		metric.WithDescription("End-to-end latency of one conversational turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.CallTransitions, err = m.Int64Counter("sonara.call.transitions",
		metric.WithDescription("Call lifecycle transitions by source and target status."),
	); err != nil {
		return nil, err
	}
	if met.EventsPublished, err = m.Int64Counter("sonara.events.published",
		metric.WithDescription("Notifier publishes by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sonara.provider.errors",
		metric.WithDescription("Provider failures by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActivePipelines, err = m.Int64UpDownCounter("sonara.active_pipelines",
		metric.WithDescription("Live turn-taking pipelines in this process."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("sonara.active_calls",
		metric.WithDescription("Calls currently active or handed off."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("sonara.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on
// first call from the global meter provider. Panics if instrument
// creation fails, which the global provider never does.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordCallTransition counts one lifecycle transition.
func (m *Metrics) RecordCallTransition(ctx context.Context, from, to string) {
	m.CallTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordEvent counts one notifier publish outcome.
func (m *Metrics) RecordEvent(ctx context.Context, kind, outcome string) {
	m.EventsPublished.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
