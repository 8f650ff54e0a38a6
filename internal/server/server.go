// Package server exposes editor sessions over HTTP and websockets and serves
// the editor page.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/storefront/internal/editor"
	apperrors "github.com/conneroisu/storefront/internal/errors"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/templates"
	"github.com/conneroisu/storefront/internal/websocket"
)

// Options configures a Server.
type Options struct {
	Addr string

	// AllowedOrigins may open websockets. At least one is required.
	AllowedOrigins []string

	// RateLimit and RateBurst bound API requests per client IP. Zero
	// disables limiting.
	RateLimit float64
	RateBurst int

	Catalog *templates.Catalog
	Version string
	Logger  logging.Logger
}

// Server is the HTTP surface of the builder.
type Server struct {
	addr     string
	sessions *editor.Manager
	catalog  *templates.Catalog
	hub      *websocket.Hub
	limiter  *RateLimiter
	version  string
	logger   logging.Logger
	router   chi.Router

	mu         sync.Mutex
	httpServer *http.Server
	shutdown   sync.Once
}

// New creates a server over sessions.
func New(sessions *editor.Manager, opts Options) (*Server, error) {
	if sessions == nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "a session manager is required")
	}
	if len(opts.AllowedOrigins) == 0 {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "at least one allowed origin is required")
	}
	origins, err := websocket.NewOriginList(opts.AllowedOrigins...)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Catalog == nil {
		opts.Catalog = templates.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	logger := opts.Logger.WithComponent("server")
	s := &Server{
		addr:     opts.Addr,
		sessions: sessions,
		catalog:  opts.Catalog,
		version:  opts.Version,
		logger:   logger,
		hub: websocket.NewHub(websocket.Options{
			Origins: origins,
			Logger:  opts.Logger,
		}),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit) + 1
		}
		s.limiter = NewRateLimiter(opts.RateLimit, burst)
	}
	s.router = s.routes()

	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestContext(s.logger))
	r.Use(requestLogger)
	r.Use(securityHeaders)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Get("/tools", s.handleTools)
		r.Get("/templates", s.handleTemplates)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/source", s.handlePutSource)

			r.Get("/sections", s.handleListSections)
			r.Post("/sections", s.handleInsertTemplate)
			r.Delete("/sections/{name}", s.handleDeleteSection)
			r.Post("/sections/{name}/move", s.handleMoveSection)

			r.Post("/tools/{tool}", s.handleApplyTool)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)

			r.Get("/backup", s.handlePendingBackup)
			r.Post("/restore", s.handleRestore)

			r.Post("/generate", s.handleGenerate)
			r.Get("/preview", s.handlePreview)
			r.Get("/audit", s.handleAudit)
		})
	})

	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return apperrors.NewNetworkError("ERR_LISTEN", "cannot listen on "+s.addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Graceful shutdown failed")
		}
	}()

	s.logger.Info(ctx, "Server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return apperrors.NewNetworkError("ERR_SERVE", "server error", err)
	}

	return nil
}

// Shutdown closes websockets, stops accepting requests and waits for
// in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		s.hub.Shutdown()
		if s.limiter != nil {
			s.limiter.Stop()
		}

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})

	return err
}
