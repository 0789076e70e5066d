package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig describes the process-wide trace provider.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio applies to root spans; spans with a sampled parent are always kept.
	SampleRatio float64
	// Options are appended after the defaults, e.g. sdktrace.WithBatcher(exporter).
	Options []sdktrace.TracerProviderOption
}

// NewProvider builds an SDK trace provider tagged with the service identity. Callers own
// Shutdown.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = InstrumentationName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "unknown"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}, cfg.Options...)
	return sdktrace.NewTracerProvider(opts...), nil
}
