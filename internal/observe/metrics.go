// Package observe holds the bot's telemetry: OpenTelemetry instruments for
// the order pipeline, span helpers that tie log lines to a trace, and the
// middleware of the operations HTTP server.
//
// Instruments are exported to Prometheus once [Setup] has run. Tests build
// their own [Metrics] with [NewMetrics] over a private meter provider.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/orderbot"

// Parse outcomes recorded by [Metrics.RecordParse].
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFault    = "fault"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks one model call. Attributes: provider, status.
	LLMDuration metric.Float64Histogram

	// STTDuration tracks voice note transcription. Attribute: status.
	STTDuration metric.Float64Histogram

	// ParseDuration tracks the whole utterance pipeline. Attribute: outcome.
	ParseDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ParseOutcomes counts interpreted utterances. Attributes: outcome, reason.
	ParseOutcomes metric.Int64Counter

	// DroppedItems counts model items that were not on the menu.
	DroppedItems metric.Int64Counter

	// OrdersConfirmed counts persisted orders. Attributes: staff, payment.
	OrdersConfirmed metric.Int64Counter

	// OrdersCancelled counts explicit cancellations.
	OrdersCancelled metric.Int64Counter

	// PersistFailures counts confirmations whose order could not be stored.
	PersistFailures metric.Int64Counter

	// PersistRetries counts retried store writes.
	PersistRetries metric.Int64Counter

	// --- Gauges ---

	// PendingOrders tracks candidates awaiting confirmation.
	PendingOrders metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds, sized for
// network calls to model and transcription APIs.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	if met.LLMDuration, err = histogram("orderbot.llm.duration", "Latency of one model call."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = histogram("orderbot.stt.duration", "Latency of voice note transcription."); err != nil {
		return nil, err
	}
	if met.ParseDuration, err = histogram("orderbot.parse.duration", "Latency of interpreting one utterance."); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("orderbot.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("orderbot.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ParseOutcomes, err = m.Int64Counter("orderbot.parse.outcomes",
		metric.WithDescription("Interpreted utterances by outcome and reason."),
	); err != nil {
		return nil, err
	}
	if met.DroppedItems, err = m.Int64Counter("orderbot.parse.dropped_items",
		metric.WithDescription("Model items dropped because they are not on the menu."),
	); err != nil {
		return nil, err
	}
	if met.OrdersConfirmed, err = m.Int64Counter("orderbot.orders.confirmed",
		metric.WithDescription("Orders persisted after confirmation."),
	); err != nil {
		return nil, err
	}
	if met.OrdersCancelled, err = m.Int64Counter("orderbot.orders.cancelled",
		metric.WithDescription("Pending orders cancelled by the user."),
	); err != nil {
		return nil, err
	}
	if met.PersistFailures, err = m.Int64Counter("orderbot.orders.persist_failures",
		metric.WithDescription("Confirmed orders that could not be stored."),
	); err != nil {
		return nil, err
	}
	if met.PersistRetries, err = m.Int64Counter("orderbot.orders.persist_retries",
		metric.WithDescription("Store writes retried after lock contention."),
	); err != nil {
		return nil, err
	}

	if met.PendingOrders, err = m.Int64UpDownCounter("orderbot.orders.pending",
		metric.WithDescription("Orders awaiting confirmation."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("orderbot.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call [Setup] before the
// first use so the instruments bind to the Prometheus exporter.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider call and its latency. kind is
// "llm" or "stt".
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string, seconds float64) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	if kind == "llm" {
		m.LLMDuration.Record(ctx, seconds, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		))
	}
}

// RecordProviderError records one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordParse records the outcome and latency of one interpreted utterance.
func (m *Metrics) RecordParse(ctx context.Context, outcome, reason string, seconds float64, dropped int) {
	m.ParseOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
	m.ParseDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
	if dropped > 0 {
		m.DroppedItems.Add(ctx, int64(dropped))
	}
}

// RecordConfirmed records a persisted order.
func (m *Metrics) RecordConfirmed(ctx context.Context, staff bool, payment string) {
	m.OrdersConfirmed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("staff", strconv.FormatBool(staff)),
		attribute.String("payment", payment),
	))
}
