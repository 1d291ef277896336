package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// restoreMeterProvider puts back the global provider Setup replaces.
func restoreMeterProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
}

func TestSetup_WithoutEndpoint(t *testing.T) {
	restoreMeterProvider(t)

	shutdown, err := Setup(context.Background(), "", time.Second)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	counter, err := otel.Meter("telemetry_test").Int64Counter("test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_AcceptsURLEndpoint(t *testing.T) {
	restoreMeterProvider(t)

	shutdown, err := Setup(context.Background(), "http://127.0.0.1:4317", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Nothing listens on the collector port; only the flush is bounded here.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		assert.NotContains(t, err.Error(), "invalid target address")
	}
}

func TestSetup_RejectsBadEndpoint(t *testing.T) {
	restoreMeterProvider(t)

	for _, endpoint := range []string{"ftp://collector:4317", "http://", "http://%zz"} {
		_, err := Setup(context.Background(), endpoint, time.Second)
		assert.Error(t, err, endpoint)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		target   string
		insecure bool
	}{
		{"collector:4317", "collector:4317", true},
		{"http://collector:4317", "collector:4317", true},
		{"http://collector:4317/", "collector:4317", true},
		{"https://otel.example.net", "otel.example.net:4317", false},
		{"https://otel.example.net:443", "otel.example.net:443", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			target, insecure, err := parseEndpoint(tt.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tt.target, target)
			assert.Equal(t, tt.insecure, insecure)
		})
	}
}
