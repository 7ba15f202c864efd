package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	serviceName = "langflow-mcp"
	meterName   = "github.com/langflow-mcp/langflow-mcp"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ShutdownFunc flushes and stops the meter provider.
type ShutdownFunc func(context.Context) error

// Metrics holds the instruments recorded by the tool dispatcher and the Langflow
// client. A nil *Metrics records nothing.
type Metrics struct {
	ToolCalls    metric.Int64Counter
	ToolErrors   metric.Int64Counter
	ToolDuration metric.Float64Histogram

	APIRequests metric.Int64Counter
	APIDuration metric.Float64Histogram

	registry *prometheus.Registry
}

// InitMetrics sets up an OpenTelemetry meter provider exported through a
// dedicated Prometheus registry and starts Go runtime instrumentation.
func InitMetrics(version string) (ShutdownFunc, *Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	meter := provider.Meter(meterName)

	m := &Metrics{registry: registry}
	var errs []error
	m.ToolCalls, err = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Number of MCP tool calls"))
	errs = append(errs, err)
	m.ToolErrors, err = meter.Int64Counter("mcp.tool.errors",
		metric.WithDescription("Number of MCP tool calls that returned an error result"))
	errs = append(errs, err)
	m.ToolDuration, err = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Duration of MCP tool calls"),
		metric.WithUnit("s"))
	errs = append(errs, err)
	m.APIRequests, err = meter.Int64Counter("langflow.api.requests",
		metric.WithDescription("Number of outbound Langflow API requests"))
	errs = append(errs, err)
	m.APIDuration, err = meter.Float64Histogram("langflow.api.duration",
		metric.WithDescription("Duration of outbound Langflow API requests"),
		metric.WithUnit("s"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}

	if err := runtime.Start(
		runtime.WithMeterProvider(provider),
		runtime.WithMinimumReadMemStatsInterval(time.Second),
	); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}

	return provider.Shutdown, m, nil
}

// PrometheusHandler serves the metrics registry in the Prometheus text format.
func (m *Metrics) PrometheusHandler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordToolCall records one dispatched tool call. kind is empty on success.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if kind != "" {
		outcome = OutcomeError
		m.ToolErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("kind", kind),
		))
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	))
	m.ToolDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordAPIRequest matches the Langflow client's observer signature.
func (m *Metrics) RecordAPIRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_code", strconv.Itoa(status)),
	))
	m.APIDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}
