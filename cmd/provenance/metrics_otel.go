package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/swh-go/provenance/internal/config"
	"github.com/swh-go/provenance/internal/metrics"
)

// newRecorderImpl builds the configured Recorder and a matching shutdown
// func. "none" (the default) skips the SDK entirely and returns metrics.Noop,
// matching spec.md §1's "metrics are out of scope" stance for deployments
// that don't want the overhead.
func newRecorderImpl(ctx context.Context, cfg config.MetricsConfig) (metrics.Recorder, func(), error) {
	switch cfg.Exporter {
	case "", "none":
		return metrics.Noop{}, func() {}, nil

	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		meter := provider.Meter("github.com/swh-go/provenance")
		return metrics.NewOTel(meter), func() { provider.Shutdown(ctx) }, nil

	case "otlp":
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		meter := provider.Meter("github.com/swh-go/provenance")
		return metrics.NewOTel(meter), func() { provider.Shutdown(ctx) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown metrics.exporter %q", cfg.Exporter)
	}
}
