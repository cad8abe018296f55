// Package telemetry wires the OpenTelemetry trace SDK behind the
// Telemetry config section. Only spans are exported: metrics stay on
// the Prometheus collector in internal/metrics, so running an OTLP
// metric pipeline next to it would double-report every series.
// This package is internal and should not be imported by external projects.
package telemetry

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/slicewise/slicewise/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Tracing owns the SDK tracer provider. When telemetry is disabled the
// provider is nil and Shutdown is a no-op.
type Tracing struct {
	tp *sdktrace.TracerProvider
}

// Init sets up the OTLP gRPC span exporter and installs the global
// tracer provider and propagators. With cfg.Enabled false it returns a
// noop Tracing without touching the globals or dialing anything.
func Init(cfg config.TelemetryConfig, logger *zap.Logger) (*Tracing, error) {
	if !cfg.Enabled {
		logger.Info("telemetry disabled, spans are not exported")
		return &Tracing{}, nil
	}

	ctx := context.Background()

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Tracing{tp: tp}, nil
}

// buildResource describes this service instance. Spans from the analyze
// and plan endpoints carry these attributes so one collector can split
// traffic by service and environment.
func buildResource(ctx context.Context, cfg config.TelemetryConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(buildVersion()),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// sampler maps the configured rate onto an SDK sampler. Rates at or
// beyond the ends of [0,1] get the cheap always/never samplers; anything
// in between is ratio-based but respects an upstream parent decision, so
// a sampled client trace is never truncated at this service.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes pending spans and closes the exporter. Safe on a
// nil or noop Tracing.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.tp == nil {
		return nil
	}
	if err := t.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

// buildVersion extracts the module version from Go build info.
// Falls back to "dev" if unavailable.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
