package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/classifier"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/config"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/firehose"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/httpserver"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/sqlite"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/telemetry"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/trusted"
)

// retentionInterval is how often expired posts are purged when retention is on.
const retentionInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.StatsInterval)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("error shutting down telemetry", "error", err)
		}
	}()

	// Repository implements both PostRepository and CursorRepository.
	repo, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open feed store: %w", err)
	}
	defer repo.Close()
	logger.Info("opened feed store", "path", cfg.DBPath)

	cls, err := buildClassifier(cfg)
	if err != nil {
		return err
	}

	cache := trusted.NewCache(trustedSource(cfg, logger), logger)
	// Trusted authors must be known before the first firehose event.
	if err := cache.Refresh(ctx); err != nil {
		logger.Warn("initial trusted author refresh failed, starting with an empty set", "error", err)
	}

	feedURI := domain.FeedURI(cfg.PublisherDID, cfg.FeedName)
	feedService, err := domain.NewFeedService(feedURI, repo, repo, cache, cls, logger)
	if err != nil {
		return fmt.Errorf("create feed service: %w", err)
	}

	subscriber, err := firehose.NewSubscriber(cfg.FirehoseURL, feedService, logger, firehose.Options{
		StatsInterval: cfg.StatsInterval,
	})
	if err != nil {
		return fmt.Errorf("create firehose subscriber: %w", err)
	}

	server := httpserver.NewServer(cfg, feedService, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := subscriber.Start(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("firehose subscriber: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		cache.Run(gctx, cfg.TrustedRefreshInterval)
		return nil
	})

	if cfg.Retention > 0 {
		g.Go(func() error {
			feedService.StartRetentionJob(gctx, retentionInterval, cfg.Retention)
			return nil
		})
	}

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("server started",
		"port", cfg.Port,
		"hostname", cfg.Hostname,
		"feed", feedURI,
		"trusted_authors", cache.Size(),
	)

	return g.Wait()
}

func buildClassifier(cfg *config.Config) (*classifier.Classifier, error) {
	clsCfg := classifier.DefaultConfig()
	if cfg.ClassifierConfig != "" {
		var err error
		clsCfg, err = classifier.LoadConfig(cfg.ClassifierConfig)
		if err != nil {
			return nil, fmt.Errorf("load classifier config: %w", err)
		}
	}
	if cfg.OriginLabel != "" {
		clsCfg.TrustedLabel = cfg.OriginLabel
	}

	cls, err := classifier.New(clsCfg)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	return cls, nil
}

func trustedSource(cfg *config.Config, logger *slog.Logger) trusted.Source {
	if cfg.TrustedAuthorsURL == "" {
		logger.Warn("FEEDGEN_TRUSTED_AUTHORS_URL not set, every post goes through the classifier")
		return trusted.SourceFunc(func(context.Context) ([]string, error) {
			return nil, nil
		})
	}
	return trusted.NewHTTPSource(cfg.TrustedAuthorsURL, logger)
}
