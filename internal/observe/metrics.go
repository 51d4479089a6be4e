// Package observe provides the observability primitives for strategydeck:
// OpenTelemetry metrics and traces, trace-aware structured logging, and the
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [InitProvider]. [DefaultMetrics] returns a process-wide
// instance; tests should build their own with [NewMetrics] and a
// ManualReader-backed provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/strategydeck"

// Metrics holds the metric instruments for the application. The underlying
// OTel instruments are safe for concurrent use.
type Metrics struct {
	// ChatDuration is the end-to-end latency of answering one chat question,
	// fallback included.
	ChatDuration metric.Float64Histogram

	// ChatAnswers counts answers by source (upstream|fallback) and bucket.
	ChatAnswers metric.Int64Counter

	// AuthAttempts counts password checks by result (success|failure).
	AuthAttempts metric.Int64Counter

	// TokenRequests counts ephemeral realtime credential requests by status.
	TokenRequests metric.Int64Counter

	// ProviderRequests counts upstream model calls by provider and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed upstream model calls by provider.
	ProviderErrors metric.Int64Counter

	// ProviderDuration is the latency of single upstream model calls.
	ProviderDuration metric.Float64Histogram

	// BreakerTransitions counts circuit breaker state changes by provider and
	// target state.
	BreakerTransitions metric.Int64Counter

	// VoiceActiveCalls is the number of voice sessions currently connected.
	VoiceActiveCalls metric.Int64UpDownCounter

	// VoiceSetupDuration is the time from Start to the side channel opening.
	VoiceSetupDuration metric.Float64Histogram

	// VoiceFailures counts failed voice calls by the setup stage that failed.
	VoiceFailures metric.Int64Counter

	// HTTPRequestDuration is the server-side request latency by method, path
	// and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds sized for model calls,
// which regularly take several seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a [Metrics] from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChatDuration, err = m.Float64Histogram("strategydeck.chat.duration",
		metric.WithDescription("Latency of answering a chat question."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChatAnswers, err = m.Int64Counter("strategydeck.chat.answers",
		metric.WithDescription("Chat answers by source and fallback bucket."),
	); err != nil {
		return nil, err
	}
	if met.AuthAttempts, err = m.Int64Counter("strategydeck.auth.attempts",
		metric.WithDescription("Password checks by result."),
	); err != nil {
		return nil, err
	}
	if met.TokenRequests, err = m.Int64Counter("strategydeck.realtime.token_requests",
		metric.WithDescription("Ephemeral realtime credential requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("strategydeck.provider.requests",
		metric.WithDescription("Upstream model requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("strategydeck.provider.errors",
		metric.WithDescription("Upstream model errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("strategydeck.provider.duration",
		metric.WithDescription("Latency of single upstream model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("strategydeck.provider.breaker_transitions",
		metric.WithDescription("Circuit breaker state changes by provider and target state."),
	); err != nil {
		return nil, err
	}
	if met.VoiceActiveCalls, err = m.Int64UpDownCounter("strategydeck.voice.active_calls",
		metric.WithDescription("Voice sessions currently connected."),
	); err != nil {
		return nil, err
	}
	if met.VoiceSetupDuration, err = m.Float64Histogram("strategydeck.voice.setup.duration",
		metric.WithDescription("Time from starting a voice call until it is connected."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VoiceFailures, err = m.Int64Counter("strategydeck.voice.failures",
		metric.WithDescription("Failed voice calls by failing stage."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("strategydeck.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
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

// DefaultMetrics returns the process-wide [Metrics], created on first use
// from [otel.GetMeterProvider]. Call it after [InitProvider] so the
// instruments bind to the Prometheus-backed provider.
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

// RecordChatAnswer records one answered chat question.
func (m *Metrics) RecordChatAnswer(ctx context.Context, source, bucket string, d time.Duration) {
	attrs := metric.WithAttributes(Attr("source", source), Attr("bucket", bucket))
	m.ChatAnswers.Add(ctx, 1, attrs)
	m.ChatDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordAuthAttempt records one password check.
func (m *Metrics) RecordAuthAttempt(ctx context.Context, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.AuthAttempts.Add(ctx, 1, metric.WithAttributes(Attr("result", result)))
}

// RecordTokenRequest records one ephemeral credential request.
func (m *Metrics) RecordTokenRequest(ctx context.Context, status string) {
	m.TokenRequests.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}

// RecordProviderCall records one upstream model call. A non-nil err also
// increments ProviderErrors.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider)))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("status", status)))
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("provider", provider)))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("to", to)))
}

// RecordVoiceFailure records a voice call that failed at stage.
func (m *Metrics) RecordVoiceFailure(ctx context.Context, stage string) {
	m.VoiceFailures.Add(ctx, 1, metric.WithAttributes(Attr("stage", stage)))
}
