// Package observe wires OpenTelemetry metrics and traces for voicememo.
//
// Instruments are created through the OTel Metrics API and scraped through
// the Prometheus bridge installed by [InitProvider]. Production code uses
// [DefaultMetrics]; tests build their own with [NewMetrics] and a manual
// reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/voicememo"

// Metrics holds every instrument the application records.
type Metrics struct {
	// STTDuration is the latency of one transcription gateway call.
	STTDuration metric.Float64Histogram

	// TitleDuration is the latency of one title generation call.
	TitleDuration metric.Float64Histogram

	// RecordingDuration is the length in seconds of finished recordings.
	RecordingDuration metric.Float64Histogram

	// ProviderRequests counts gateway calls by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts gateway failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// TranscriptionOutcomes counts finished attempts by outcome
	// (completed, retry, failed, quota, interrupted).
	TranscriptionOutcomes metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by name and
	// target state.
	BreakerTransitions metric.Int64Counter

	// ActiveTranscriptions is the number of notes currently in flight.
	ActiveTranscriptions metric.Int64UpDownCounter

	// ActiveRecordings is 1 while a recording session is live.
	ActiveRecordings metric.Int64UpDownCounter

	// HTTPRequestDuration is the latency of admin HTTP requests.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets covers remote transcription and completion calls (seconds).
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// recordingBuckets covers memo lengths (seconds).
var recordingBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("voicememo.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TitleDuration, err = m.Float64Histogram("voicememo.title.duration",
		metric.WithDescription("Latency of title generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("voicememo.recording.duration",
		metric.WithDescription("Length of finished recordings."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(recordingBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("voicememo.provider.requests",
		metric.WithDescription("Provider calls by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voicememo.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionOutcomes, err = m.Int64Counter("voicememo.transcription.outcomes",
		metric.WithDescription("Transcription attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voicememo.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	if met.ActiveTranscriptions, err = m.Int64UpDownCounter("voicememo.active_transcriptions",
		metric.WithDescription("Notes currently being transcribed."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter("voicememo.active_recordings",
		metric.WithDescription("Live recording sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicememo.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// DefaultMetrics returns the process-wide [Metrics] built on the global
// meter provider. It panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
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

// RecordOutcome counts one finished transcription attempt.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome string) {
	m.TranscriptionOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordBreakerTransition counts one breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", name),
			attribute.String("state", to),
		),
	)
}
