package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_ExportsMetricsAndSpans(t *testing.T) {
	prevMeters, prevTracers := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMeters)
		otel.SetTracerProvider(prevTracers)
	})

	reg := prometheus.NewRegistry()
	spans := tracetest.NewInMemoryExporter()
	shutdown, err := Setup("", "test", WithRegisterer(reg), WithSpanExporter(spans))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordConfirmed(context.Background(), false, "card")

	_, span := StartSpan(context.Background(), "ordering.Confirm")
	span.End()

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "orderbot_orders_confirmed") && !strings.Contains(body, "orderbot.orders.confirmed") {
		t.Errorf("exposition missing the confirmed orders counter:\n%s", body)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := spans.GetSpans(); len(got) != 1 || got[0].Name != "ordering.Confirm" {
		t.Errorf("exported spans = %v, want ordering.Confirm", got)
	}
}
