// Package telemetry configures OpenTelemetry tracing.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"weather-dashboard/datasource"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Setup installs a tracer provider exporting to Zipkin when a collector URL is configured.
// Without one the global no-op provider stays in place. The returned func flushes and stops the exporter.
func Setup(ctx context.Context, cfg *datasource.Config, logger *slog.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.Tracing.ZipkinURL == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := zipkin.New(cfg.Tracing.ZipkinURL)
	if err != nil {
		return nil, fmt.Errorf("create zipkin exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.Tracing.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled", "exporter", "zipkin", "url", cfg.Tracing.ZipkinURL)
	return tp.Shutdown, nil
}
