// Package api provides the HTTP server for ResumePipe.
//
// It mounts the transport webhooks, the admin endpoints, health, metrics and
// the media route Twilio fetches documents from.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/ResumePipe/internal/messaging"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/store"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// SessionLister exposes the live sessions. *flow.Lifecycle implements it.
type SessionLister interface {
	Active() int
	Timers() []models.TimerInfo
}

// Opts holds configuration options for the Server.
type Opts struct {
	Addr       string
	AdminToken string
	Telegram   *messaging.TelegramService
	Twilio     *messaging.TwilioService
	Usage      store.UsageLog
	Sessions   SessionLister
	Metrics    http.Handler
}

// Option defines a configuration option for the Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAdminToken enables the /admin routes behind a bearer token.
func WithAdminToken(token string) Option {
	return func(o *Opts) { o.AdminToken = token }
}

// WithTelegram mounts POST /webhook/telegram.
func WithTelegram(svc *messaging.TelegramService) Option {
	return func(o *Opts) { o.Telegram = svc }
}

// WithTwilio mounts POST /webhook/twilio and GET /media/{name}.
func WithTwilio(svc *messaging.TwilioService) Option {
	return func(o *Opts) { o.Twilio = svc }
}

// WithUsageLog backs GET /admin/users.
func WithUsageLog(u store.UsageLog) Option {
	return func(o *Opts) { o.Usage = u }
}

// WithSessions backs GET /admin/sessions.
func WithSessions(s SessionLister) Option {
	return func(o *Opts) { o.Sessions = s }
}

// WithMetricsHandler mounts GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *Opts) { o.Metrics = h }
}

// Server is the ResumePipe HTTP server.
type Server struct {
	opts   Opts
	router chi.Router
}

// NewServer builds the router from the configured components. Routes for
// components that are not configured are not mounted.
func NewServer(opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{opts: cfg}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	r.Get("/health", s.healthHandler)

	if s.opts.Telegram != nil {
		r.Post("/webhook/telegram", s.opts.Telegram.TelegramWebhookHandler)
	}
	if s.opts.Twilio != nil {
		r.Post("/webhook/twilio", s.opts.Twilio.TwilioWebhookHandler)
		r.Get(messaging.MediaRoutePrefix+"{name}", s.mediaHandler)
	}
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	if s.opts.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(bearerAuth(s.opts.AdminToken))
			r.Get("/users", s.usersHandler)
			r.Get("/sessions", s.sessionsHandler)
		})
	} else {
		slog.Info("Server: admin token not set, /admin routes disabled")
	}
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
