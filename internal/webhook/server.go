package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CamDog38/ShopDelta2-sub001/internal/metrics"
)

// Server represents the webhook HTTP server.
type Server struct {
	config     Config
	verifier   Verifier
	dispatcher EventDispatcher
	responder  Responder
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new webhook server instance.
func New(config Config, dispatcher EventDispatcher, logger *slog.Logger) *Server {
	config.applyDefaults()
	return &Server{
		config:     config,
		verifier:   NewVerifier(config.Secrets...),
		dispatcher: dispatcher,
		responder:  Responder{RetryOnPartialFailure: config.RetryOnPartialFailure},
		logger:     logger,
	}
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "topics", len(Topics))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Post("/webhooks", s.handleWebhook)
	for _, topic := range Topics {
		r.Post("/webhooks/"+string(topic), s.handleTopic(topic))
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleWebhook serves the shared endpoint; the topic comes from the header.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	s.process(w, r, Topic(r.Header.Get(s.config.TopicHeader)))
}

// handleTopic serves a per-topic endpoint; the route decides the topic.
func (s *Server) handleTopic(topic Topic) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get(s.config.TopicHeader); h != "" && Topic(h) != topic {
			s.logger.Warn("webhook topic header does not match route",
				"route_topic", string(topic),
				"header_topic", h,
			)
		}
		s.process(w, r, topic)
	}
}

// process runs verify, dispatch and respond for one delivery.
func (s *Server) process(w http.ResponseWriter, r *http.Request, topic Topic) {
	ctx := r.Context()
	logger := s.logger.With("request_id", middleware.GetReqID(ctx))

	signature := r.Header.Get(s.config.SignatureHeader)

	var v VerificationResult
	body, err := s.readBody(r)
	if err != nil {
		logger.Warn("webhook body rejected", "topic", string(topic), "error", err)
		v = VerificationResult{Valid: false, Reason: ReasonMalformedBody}
	} else {
		v = s.verifier.Verify(body, signature)
	}

	var out *CleanupOutcome
	if v.Valid {
		ev, err := ParseEvent(topic, r.Header.Get(s.config.ShopHeader), r.Header.Get(s.config.WebhookIDHeader), signature, body)
		switch {
		case err != nil:
			logger.Warn("webhook payload rejected", "topic", string(topic), "error", err)
		case !topic.Supported():
			out = &CleanupOutcome{Shop: ev.Shop, Topic: topic, Unsupported: true}
		default:
			out = s.dispatcher.Dispatch(ctx, ev)
		}
	}

	resp := s.responder.Respond(v, out)
	LogOutcome(logger, topic, v, out, resp)
	metrics.WebhookRequests.WithLabelValues(metricTopic(topic), Classify(v, out)).Inc()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

var errBodyTooLarge = errors.New("payload too large")

// readBody reads at most MaxBodySize bytes; a larger body is an error.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(body)) > s.config.MaxBodySize {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// metricTopic keeps label cardinality bounded for unknown topics.
func metricTopic(t Topic) string {
	if t.Supported() {
		return string(t)
	}
	return "other"
}
