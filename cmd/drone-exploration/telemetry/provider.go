package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config holds metrics export configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	RunID          string
	ExportInterval time.Duration
	Writer         io.Writer // destination of the JSON export (required when enabled)
}

// Provider owns the meter provider used by a simulation run
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	config        Config
}

// New creates a metrics provider. When metrics are disabled it returns a
// provider whose MeterProvider is a no-op.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}

	if !cfg.Enabled {
		return p, nil
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("metrics enabled but no writer configured")
	}
	if cfg.ExportInterval <= 0 {
		return nil, fmt.Errorf("metrics export interval must be positive")
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.RunID != "" {
		attrs = append(attrs, attribute.String("service.instance.id", cfg.RunID))
	}
	res := resource.NewSchemaless(attrs...)

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.Writer),
		stdoutmetric.WithoutTimestamps(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.ExportInterval),
		)),
	)

	return p, nil
}

// MeterProvider returns the provider to hand to instrumented components
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return noop.NewMeterProvider()
	}
	return p.meterProvider
}

// Shutdown exports pending data and stops the periodic reader
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("metric shutdown failed: %w", err)
	}
	return nil
}
