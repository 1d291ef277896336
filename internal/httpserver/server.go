package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/config"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
)

// maxNotifyBody caps the notify request body.
const maxNotifyBody = 4 << 10

// Server is the HTTP server that serves feed generator XRPC endpoints.
type Server struct {
	cfg         *config.Config
	feedService *domain.FeedService
	logger      *slog.Logger
	httpServer  *http.Server
	router      chi.Router
}

// NewServer creates a new HTTP server with the given feed service.
func NewServer(cfg *config.Config, feedService *domain.FeedService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		feedService: feedService,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// Forwarded headers are client-controlled unless a proxy rewrites them.
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(withLogging(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(rateLimit(cfg.RateLimit))
	s.registerRoutes(r)
	s.router = r

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/.well-known/did.json", s.handleDIDDoc)

	r.Route("/xrpc", func(r chi.Router) {
		r.Get("/app.bsky.feed.describeFeedGenerator", s.handleDescribeFeedGenerator)
		r.Get("/app.bsky.feed.getFeedSkeleton", s.handleGetFeedSkeleton)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.NotifyRateLimit))
		r.Use(maxBody(maxNotifyBody))
		r.Use(bearerToken(s.cfg.NotifyToken))
		r.Post("/notify", s.handleNotify)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
