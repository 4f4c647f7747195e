package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// DefaultServiceName is reported when Setup is given an empty name.
const DefaultServiceName = "orderbot"

type telemetryOptions struct {
	spans    sdktrace.SpanExporter
	registry prometheus.Registerer
}

// TelemetryOption customises [Setup].
type TelemetryOption func(*telemetryOptions)

// WithSpanExporter batches finished spans to exp. Without it spans are
// sampled for log correlation but go nowhere.
func WithSpanExporter(exp sdktrace.SpanExporter) TelemetryOption {
	return func(o *telemetryOptions) { o.spans = exp }
}

// WithRegisterer bridges metrics into reg instead of
// prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) TelemetryOption {
	return func(o *telemetryOptions) { o.registry = reg }
}

// Setup installs the global meter and tracer providers for service. Metric
// instruments created afterwards, including [DefaultMetrics], are exported
// through Prometheus and served by [MetricsHandler]. The returned function
// flushes and stops both providers.
func Setup(service, version string, opts ...TelemetryOption) (func(context.Context) error, error) {
	var o telemetryOptions
	for _, fn := range opts {
		fn(&o)
	}
	if service == "" {
		service = DefaultServiceName
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	var promOpts []promexporter.Option
	if o.registry != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(o.registry))
	}
	reader, err := promexporter.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))

	tracerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if o.spans != nil {
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(o.spans))
	}
	tracers := sdktrace.NewTracerProvider(tracerOpts...)

	otel.SetMeterProvider(meters)
	otel.SetTracerProvider(tracers)

	return func(ctx context.Context) error {
		return errors.Join(meters.Shutdown(ctx), tracers.Shutdown(ctx))
	}, nil
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
