package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/CamDog38/ShopDelta2-sub001/internal/auth"
	"github.com/CamDog38/ShopDelta2-sub001/internal/metrics"
	"github.com/CamDog38/ShopDelta2-sub001/internal/share"
	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

// SessionVerifier turns a bearer session token into a principal.
type SessionVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// ShopRegistrar records the shop behind an authenticated request.
type ShopRegistrar interface {
	LookupShop(ctx context.Context, domain string) (tenant.Shop, error)
	Register(ctx context.Context, domain, scope string) (tenant.Shop, error)
}

// ShareService is the share link surface the API drives.
type ShareService interface {
	Issue(ctx context.Context, shop string, opts share.IssueOptions) (share.Token, error)
	Get(ctx context.Context, shop, id string) (share.Token, error)
	List(ctx context.Context, shop string) ([]share.Token, error)
	Update(ctx context.Context, shop, id string, opts share.UpdateOptions) (share.Token, error)
	Revoke(ctx context.Context, shop, id string) (share.Token, error)
	Delete(ctx context.Context, shop, id string) error
	Resolve(ctx context.Context, code string) (share.Token, share.AccessState, error)
	Unlock(ctx context.Context, code, password string) (share.Token, error)
}

// Config holds API server configuration
type Config struct {
	Listen          string
	PublicBaseURL   string
	UnlockPerMinute int
	UnlockBurst     int
	MetricsEnabled  bool
	MetricsPath     string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	verifier  SessionVerifier
	shops     ShopRegistrar
	shares    ShareService
	unlocks   *RateLimiter
	validate  *validator.Validate
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	now       func() time.Time
}

// New creates a new API server instance
func New(config Config, verifier SessionVerifier, shops ShopRegistrar, shares ShareService, logger *slog.Logger) *Server {
	if config.UnlockPerMinute <= 0 {
		config.UnlockPerMinute = 10
	}
	if config.UnlockBurst <= 0 {
		config.UnlockBurst = 5
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		verifier:  verifier,
		shops:     shops,
		shares:    shares,
		unlocks:   NewRateLimiter(config.UnlockPerMinute, config.UnlockBurst),
		validate:  validator.New(),
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stopPrune := make(chan struct{})
	defer close(stopPrune)
	go s.unlocks.PruneEvery(time.Minute, stopPrune)

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	if s.config.MetricsEnabled {
		r.Handle(s.config.MetricsPath, metrics.Handler())
	}

	// Public share access.
	r.Get("/s/{code}", s.handleResolveShare)
	r.Post("/s/{code}/unlock", s.handleUnlockShare)

	// Embedded app API, scoped to the session token's shop.
	r.Route("/api/shares", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/", s.handleCreateShare)
		r.Get("/", s.handleListShares)
		r.Get("/{id}", s.handleGetShare)
		r.Patch("/{id}", s.handleUpdateShare)
		r.Delete("/{id}", s.handleDeleteShare)
		r.Post("/{id}/revoke", s.handleRevokeShare)
	})

	return r
}

// loggingMiddleware logs HTTP requests and records request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status, time.Since(start))

		s.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
