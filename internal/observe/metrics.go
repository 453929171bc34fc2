// Package observe provides application-wide observability primitives for
// Chatscribe: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Chatscribe
// metrics.
const meterName = "github.com/lumisage/chatscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SummarizeDuration tracks end-to-end summarization pipeline latency.
	SummarizeDuration metric.Float64Histogram

	// LLMDuration tracks the LLM request latency, including retries.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// Summaries counts completed summarizations. Use with attributes:
	//   attribute.String("length", ...), attribute.String("status", ...)
	Summaries metric.Int64Counter

	// CacheLookups counts cache reads. Use with attributes:
	//   attribute.String("cache", ...), attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// LLMRequests counts LLM API calls. Use with attributes:
	//   attribute.String("model", ...), attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// TokensUsed counts tokens consumed and produced. Use with attribute:
	//   attribute.String("direction", "input"|"output")
	TokensUsed metric.Int64Counter

	// --- Error counters ---

	// SummarizeErrors counts failed summarizations. Use with attribute:
	//   attribute.String("code", ...)
	SummarizeErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveBatches tracks the number of batch summarizations in flight.
	ActiveBatches metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round trips, which dominate pipeline latency.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SummarizeDuration, err = m.Float64Histogram("chatscribe.summarize.duration",
		metric.WithDescription("End-to-end summarization pipeline latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("chatscribe.llm.duration",
		metric.WithDescription("LLM request latency including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Summaries, err = m.Int64Counter("chatscribe.summaries",
		metric.WithDescription("Total completed summarizations by length and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("chatscribe.cache.lookups",
		metric.WithDescription("Total cache reads by cache name and result."),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter("chatscribe.llm.requests",
		metric.WithDescription("Total LLM API calls by model and status."),
	); err != nil {
		return nil, err
	}
	if met.TokensUsed, err = m.Int64Counter("chatscribe.tokens",
		metric.WithDescription("Total tokens by direction."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.SummarizeErrors, err = m.Int64Counter("chatscribe.summarize.errors",
		metric.WithDescription("Total failed summarizations by error code."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveBatches, err = m.Int64UpDownCounter("chatscribe.active_batches",
		metric.WithDescription("Number of batch summarizations in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("chatscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSummary records a completed summarization with the standard
// attribute set.
func (m *Metrics) RecordSummary(ctx context.Context, length, status string) {
	m.Summaries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("length", length),
			attribute.String("status", status),
		),
	)
}

// RecordCacheLookup records a cache read outcome.
func (m *Metrics) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("cache", cache),
			attribute.String("result", result),
		),
	)
}

// RecordLLMRequest records an LLM call outcome.
func (m *Metrics) RecordLLMRequest(ctx context.Context, model, status string) {
	m.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)
}

// RecordTokens records token consumption for one response.
func (m *Metrics) RecordTokens(ctx context.Context, inputTokens, outputTokens int) {
	m.TokensUsed.Add(ctx, int64(inputTokens),
		metric.WithAttributes(attribute.String("direction", "input")))
	m.TokensUsed.Add(ctx, int64(outputTokens),
		metric.WithAttributes(attribute.String("direction", "output")))
}

// RecordSummarizeError records a failed summarization by taxonomy code.
func (m *Metrics) RecordSummarizeError(ctx context.Context, code string) {
	m.SummarizeErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", code)),
	)
}
