package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "FEEDGEN_HOSTNAME", "FEEDGEN_SERVICE_DID", "FEEDGEN_PUBLISHER_DID",
	"FEEDGEN_FEED_NAME", "FEEDGEN_DB_PATH", "FEEDGEN_FIREHOSE_URL",
	"FEEDGEN_TRUSTED_AUTHORS_URL", "FEEDGEN_TRUSTED_REFRESH_INTERVAL",
	"FEEDGEN_CORS_ORIGINS", "FEEDGEN_RATE_LIMIT", "FEEDGEN_NOTIFY_RATE_LIMIT",
	"FEEDGEN_NOTIFY_TOKEN", "FEEDGEN_TRUST_PROXY", "FEEDGEN_STATS_INTERVAL", "FEEDGEN_RETENTION",
	"FEEDGEN_CLASSIFIER_CONFIG", "FEEDGEN_ORIGIN_LABEL", "FEEDGEN_LOG_LEVEL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// clearEnv blanks every variable Load reads so the host environment can't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "localhost", cfg.Hostname)
	assert.Equal(t, "did:web:localhost", cfg.ServiceDID())
	assert.Equal(t, "cannect", cfg.FeedName)
	assert.Equal(t, "./data/feed.db", cfg.DBPath)
	assert.Equal(t, "wss://jetstream1.us-east.bsky.network/subscribe", cfg.FirehoseURL)
	assert.Equal(t, 5*time.Minute, cfg.TrustedRefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.StatsInterval)
	assert.Zero(t, cfg.Retention)
	assert.Equal(t, 300, cfg.RateLimit)
	assert.Equal(t, 30, cfg.NotifyRateLimit)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Empty(t, cfg.OriginLabel)
	assert.False(t, cfg.TrustProxy)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")
	t.Setenv("PORT", "8080")
	t.Setenv("FEEDGEN_HOSTNAME", "feed.cannect.space")
	t.Setenv("FEEDGEN_SERVICE_DID", "did:web:other.example")
	t.Setenv("FEEDGEN_CORS_ORIGINS", "https://cannect.space, https://app.cannect.space,,")
	t.Setenv("FEEDGEN_RETENTION", "720h")
	t.Setenv("FEEDGEN_LOG_LEVEL", "DEBUG")
	t.Setenv("FEEDGEN_NOTIFY_TOKEN", "s3cret")
	t.Setenv("FEEDGEN_TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "did:web:other.example", cfg.ServiceDID())
	assert.Equal(t, []string{"https://cannect.space", "https://app.cannect.space"}, cfg.CORSOrigins)
	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "s3cret", cfg.NotifyToken)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing publisher", map[string]string{}},
		{"bad port", map[string]string{"PORT": "eighty"}},
		{"bad duration", map[string]string{"FEEDGEN_STATS_INTERVAL": "soon"}},
		{"negative retention", map[string]string{"FEEDGEN_RETENTION": "-1h"}},
		{"zero refresh", map[string]string{"FEEDGEN_TRUSTED_REFRESH_INTERVAL": "0s"}},
		{"zero rate limit", map[string]string{"FEEDGEN_RATE_LIMIT": "0"}},
		{"bad trust proxy", map[string]string{"FEEDGEN_TRUST_PROXY": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.name != "missing publisher" {
				t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FEEDGEN_PUBLISHER_DID=did:plc:fromfile\nFEEDGEN_FEED_NAME=weed\n"), 0600))

	// Already-set variables win over the file.
	t.Setenv("FEEDGEN_FEED_NAME", "cannect-dev")
	os.Unsetenv("FEEDGEN_PUBLISHER_DID")

	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "did:plc:fromfile", cfg.PublisherDID)
	assert.Equal(t, "cannect-dev", cfg.FeedName)
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFromString("debug"))
	assert.Equal(t, slog.LevelWarn, levelFromString(" warning "))
	assert.Equal(t, slog.LevelError, levelFromString("error"))
	assert.Equal(t, slog.LevelInfo, levelFromString(""))
	assert.Equal(t, slog.LevelInfo, levelFromString("verbose"))
}
