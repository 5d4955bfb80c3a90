package tracing

import (
	"context"
	"fmt"

	"github.com/go-logr/zapr"
	v1 "github.com/statbridge/statbridge/apis/v1"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const DefaultServiceName = "statbridge"

// Provider owns the process tracer provider and its exporter.
type Provider struct {
	logger   *zap.Logger
	provider *sdktrace.TracerProvider
}

// New installs a global tracer provider. Spans are exported over OTLP/HTTP only
// when an endpoint is configured.
func New(ctx context.Context, logger *zap.Logger, spec *v1.TracingSpec) (*Provider, error) {
	otel.SetLogger(zapr.NewLogger(logger))

	serviceName := DefaultServiceName
	if spec != nil && spec.ServiceName != "" {
		serviceName = spec.ServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	hasExporter := spec != nil && spec.Endpoint != ""
	if hasExporter {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(spec.Endpoint)}
		if spec.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}

		exp, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter for '%s': %w", spec.Endpoint, err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("tracing configured", zap.String("service_name", serviceName), zap.Bool("exporter", hasExporter))

	return &Provider{logger: logger, provider: tp}, nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.provider
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
