package telemetry

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/irfndi/kdp-pulse/internal/config"
)

const (
	// Service information
	ServiceName    = "kdp-pulse"
	ServiceVersion = "1.0.0"
)

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracing installs a global tracer provider. Spans go to the OTLP
// endpoint when one is configured and to stdout otherwise. When telemetry is
// disabled the global no-op provider stays in place.
func InitTracing(ctx context.Context, cfg config.TelemetryConfig, environment string, logger *logrus.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return noopShutdown, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = ServiceName
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironment(environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithFields(logrus.Fields{
		"service":  serviceName,
		"endpoint": cfg.OTLPEndpoint,
	}).Info("Tracing initialized")

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint == "" {
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exp, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exp, nil
}
