package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Hostname is the public hostname where this service is reachable (used for did:web).
	Hostname string

	// Port is the HTTP server port.
	Port int

	// serviceDID overrides the did:web derived from Hostname.
	serviceDID string

	// PublisherDID is the DID of the account that published the feed generator record.
	PublisherDID string

	// FeedName is the record key of the feed generator record.
	FeedName string

	// DBPath is the SQLite database file.
	DBPath string

	// FirehoseURL is the Jetstream WebSocket endpoint.
	FirehoseURL string

	// TrustedAuthorsURL returns the origin's author DIDs as {"dids": [...]}.
	// Empty disables the trusted-author fast path.
	TrustedAuthorsURL      string
	TrustedRefreshInterval time.Duration

	// CORSOrigins is the browser origin allow-list. Empty allows none.
	CORSOrigins []string

	// RateLimit and NotifyRateLimit are per-IP requests per minute.
	RateLimit       int
	NotifyRateLimit int

	// TrustProxy honours X-Forwarded-For / X-Real-IP for the client address.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy bool

	// NotifyToken, when set, is required as a bearer token on the notify endpoint.
	NotifyToken string

	StatsInterval time.Duration

	// Retention is the maximum post age. Zero keeps posts forever.
	Retention time.Duration

	// ClassifierConfig is an optional YAML file overriding classifier data.
	ClassifierConfig string

	// OriginLabel overrides the classifier's trusted-author label.
	OriginLabel string

	LogLevel slog.Level

	// OTLPEndpoint enables metric export when set.
	OTLPEndpoint string
}

// ServiceDID returns the did:web for this feed generator based on the hostname,
// unless FEEDGEN_SERVICE_DID overrides it.
func (c *Config) ServiceDID() string {
	if c.serviceDID != "" {
		return c.serviceDID
	}
	return "did:web:" + c.Hostname
}

// LoadDotEnv seeds the environment from .env files. Missing files are ignored
// and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := intEnv("PORT", 3000)
	if err != nil {
		return nil, err
	}

	hostname := os.Getenv("FEEDGEN_HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}

	publisherDID := os.Getenv("FEEDGEN_PUBLISHER_DID")
	if publisherDID == "" {
		return nil, fmt.Errorf("FEEDGEN_PUBLISHER_DID is required")
	}

	firehoseURL := os.Getenv("FEEDGEN_FIREHOSE_URL")
	if firehoseURL == "" {
		firehoseURL = "wss://jetstream1.us-east.bsky.network/subscribe"
	}

	refresh, err := durationEnv("FEEDGEN_TRUSTED_REFRESH_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	statsInterval, err := durationEnv("FEEDGEN_STATS_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	retention, err := durationEnv("FEEDGEN_RETENTION", 0)
	if err != nil {
		return nil, err
	}
	rateLimit, err := intEnv("FEEDGEN_RATE_LIMIT", 300)
	if err != nil {
		return nil, err
	}
	notifyRateLimit, err := intEnv("FEEDGEN_NOTIFY_RATE_LIMIT", 30)
	if err != nil {
		return nil, err
	}

	trustProxy, err := boolEnv("FEEDGEN_TRUST_PROXY", false)
	if err != nil {
		return nil, err
	}

	if refresh <= 0 || statsInterval <= 0 {
		return nil, fmt.Errorf("refresh and stats intervals must be positive")
	}
	if rateLimit <= 0 || notifyRateLimit <= 0 {
		return nil, fmt.Errorf("rate limits must be positive")
	}

	return &Config{
		Hostname:               hostname,
		Port:                   port,
		serviceDID:             os.Getenv("FEEDGEN_SERVICE_DID"),
		PublisherDID:           publisherDID,
		FeedName:               stringEnv("FEEDGEN_FEED_NAME", "cannect"),
		DBPath:                 stringEnv("FEEDGEN_DB_PATH", "./data/feed.db"),
		FirehoseURL:            firehoseURL,
		TrustedAuthorsURL:      os.Getenv("FEEDGEN_TRUSTED_AUTHORS_URL"),
		TrustedRefreshInterval: refresh,
		CORSOrigins:            listEnv("FEEDGEN_CORS_ORIGINS"),
		RateLimit:              rateLimit,
		NotifyRateLimit:        notifyRateLimit,
		TrustProxy:             trustProxy,
		NotifyToken:            os.Getenv("FEEDGEN_NOTIFY_TOKEN"),
		StatsInterval:          statsInterval,
		Retention:              retention,
		ClassifierConfig:       os.Getenv("FEEDGEN_CLASSIFIER_CONFIG"),
		OriginLabel:            os.Getenv("FEEDGEN_ORIGIN_LABEL"),
		LogLevel:               levelFromString(os.Getenv("FEEDGEN_LOG_LEVEL")),
		OTLPEndpoint:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// levelFromString maps FEEDGEN_LOG_LEVEL to a slog level. Unset or unknown
// values mean info.
func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
