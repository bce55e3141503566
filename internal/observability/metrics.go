package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TrialMetrics records orchestrator trial metrics. Methods accept ctx for
// future exemplar support.
type TrialMetrics interface {
	RecordTrialIssued(ctx context.Context, condition string)
	RecordTrialInvalid(ctx context.Context, reason string)
	RecordRetry(ctx context.Context, condition string)
	RecordGenerationDuration(ctx context.Context, duration time.Duration, status string)
}

// trialMetrics implements TrialMetrics.
type trialMetrics struct {
	issued   metric.Int64Counter
	invalid  metric.Int64Counter
	retries  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTrialMetrics creates TrialMetrics. Returns (nil, nil) when meter is nil
// (metrics disabled).
func NewTrialMetrics(meter metric.Meter) (TrialMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	issued, err := meter.Int64Counter(
		MetricNameTrialsIssued,
		metric.WithDescription("Total generation trials issued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create trials issued counter: %w", err)
	}

	invalid, err := meter.Int64Counter(
		MetricNameTrialsInvalid,
		metric.WithDescription("Total trials marked invalid, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create trials invalid counter: %w", err)
	}

	retries, err := meter.Int64Counter(
		MetricNameTrialRetries,
		metric.WithDescription("Total per-trial retries after transient collaborator errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("create trial retries counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameGenerationDuration,
		metric.WithDescription("Generation request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generation duration histogram: %w", err)
	}

	return &trialMetrics{issued: issued, invalid: invalid, retries: retries, duration: duration}, nil
}

func (m *trialMetrics) RecordTrialIssued(ctx context.Context, condition string) {
	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCondition, condition)))
}

func (m *trialMetrics) RecordTrialInvalid(ctx context.Context, reason string) {
	if !AllowedInvalidReasons[reason] {
		reason = "other"
	}

	m.invalid.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (m *trialMetrics) RecordRetry(ctx context.Context, condition string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCondition, condition)))
}

func (m *trialMetrics) RecordGenerationDuration(ctx context.Context, duration time.Duration, status string) {
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

// EmbeddingMetrics records embedding provider metrics (lookups, cache hits,
// provider errors).
type EmbeddingMetrics interface {
	RecordLookup(ctx context.Context, space string)
	RecordCacheHit(ctx context.Context, space string)
	RecordError(ctx context.Context, space string)
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string)
}

// embeddingMetrics implements EmbeddingMetrics.
type embeddingMetrics struct {
	lookups   metric.Int64Counter
	cacheHits metric.Int64Counter
	errors    metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter
// is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	lookups, err := meter.Int64Counter(
		MetricNameEmbeddingLookups,
		metric.WithDescription("Total term embedding lookups"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding lookups counter: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		MetricNameEmbeddingCacheHits,
		metric.WithDescription("Total embedding lookups served from cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache hits counter: %w", err)
	}

	providerErrors, err := meter.Int64Counter(
		MetricNameEmbeddingErrors,
		metric.WithDescription("Total embedding provider errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	return &embeddingMetrics{
		lookups:   lookups,
		cacheHits: cacheHits,
		errors:    providerErrors,
		duration:  duration,
	}, nil
}

func (m *embeddingMetrics) RecordLookup(ctx context.Context, space string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSpace, space)))
}

func (m *embeddingMetrics) RecordCacheHit(ctx context.Context, space string) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSpace, space)))
}

func (m *embeddingMetrics) RecordError(ctx context.Context, space string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSpace, space)))
}

func (m *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string) {
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

// RequestMetrics records HTTP request count and duration for the API server.
type RequestMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
}

// requestMetrics implements RequestMetrics.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRequestMetrics creates RequestMetrics. Returns (nil, nil) when meter is
// nil (metrics disabled).
func NewRequestMetrics(meter metric.Meter) (RequestMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameHTTPRequests,
		metric.WithDescription("Total HTTP requests handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameHTTPRequestDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http request duration histogram: %w", err)
	}

	return &requestMetrics{requests: requests, duration: duration}, nil
}

func (m *requestMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.String(AttrClass, statusClass),
	)

	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}
