// Package telemetry configures the process-wide OpenTelemetry meter provider.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc flushes and stops the meter provider.
type ShutdownFunc func(context.Context) error

// Setup installs a global meter provider. With an empty endpoint no exporter
// is attached: instruments still work but readings stay in process.
func Setup(ctx context.Context, endpoint string, interval time.Duration) (ShutdownFunc, error) {
	var opts []sdkmetric.Option
	if endpoint != "" {
		target, insecure, err := parseEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
		if insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// parseEndpoint turns OTEL_EXPORTER_OTLP_ENDPOINT into the host:port the gRPC
// exporter dials. URLs pick TLS from the scheme; a bare host:port is plaintext.
func parseEndpoint(endpoint string) (target string, insecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid otlp endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid otlp endpoint %q: missing host", endpoint)
	}
	switch u.Scheme {
	case "http":
		insecure = true
	case "https":
	default:
		return "", false, fmt.Errorf("invalid otlp endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	target = u.Host
	if u.Port() == "" {
		target += ":4317"
	}
	return target, insecure, nil
}
