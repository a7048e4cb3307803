package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hpungsan/scribe/internal/config"
	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/ops"
	"github.com/hpungsan/scribe/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const shutdownTimeout = 10 * time.Second

// Options configures a Server. Store, Config and Sessions are required.
type Options struct {
	Store    docstore.Store
	Config   *config.Config
	Sessions *session.Manager
	Logger   logger.Logger
	Version  string
	Bind     string
	Port     int
}

// Server is the Scribe web UI and editor API.
type Server struct {
	http     *http.Server
	sessions *session.Manager
	logger   logger.Logger
}

// NewServer builds the router and HTTP server. A non-empty jwt_secret turns
// on bearer-token identity; otherwise every request acts as the configured
// user.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	var tokens *identity.Tokens
	if opts.Config.JWTSecret != "" {
		t, err := identity.NewTokens(opts.Config.JWTSecret, opts.Config.TokenTTL())
		if err != nil {
			return nil, err
		}
		tokens = t
	}

	h, err := newHandlers(opts)
	if err != nil {
		return nil, err
	}

	r := newRouter(h, authenticator{tokens: tokens, static: opts.Config.UserID}, opts.Config, opts.Logger)

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      opts.Config.WriteTimeout() + 20*time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		sessions: opts.Sessions,
		logger:   opts.Logger,
	}, nil
}

func newHandlers(opts Options) (*Handlers, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	return &Handlers{
		deps: ops.Deps{
			Store:    opts.Store,
			Identity: identity.FromContext{},
			Config:   opts.Config,
			Logger:   opts.Logger,
		},
		sessions: opts.Sessions,
		renderer: NewRenderer(templateSub, opts.Version, opts.Logger),
	}, nil
}

func newRouter(h *Handlers, auth authenticator, cfg *config.Config, log logger.Logger) http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-FS: %v", err))
	}

	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(log))
	r.Use(securityHeaders)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.WriteTimeout() + 5*time.Second))
		r.Use(auth.middleware(h.renderer))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/notes", http.StatusFound)
		})
		r.Get("/notes", h.HandleList)
		r.Get("/notes/{id}", h.HandleDetail)
		r.Delete("/notes/{id}", h.HandleDelete)
		r.Post("/notes/{id}/pin", h.HandlePin(true))
		r.Post("/notes/{id}/unpin", h.HandlePin(false))

		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", h.HandleSessionOpen)
			r.Get("/{sid}", h.HandleSessionGet)
			r.Patch("/{sid}", h.HandleSessionEdit)
			r.Post("/{sid}/flush", h.HandleSessionFlush)
			r.Delete("/{sid}", h.HandleSessionClose)
		})
	})

	return r
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until ctx ends or SIGINT/SIGTERM arrives, then stops accepting
// requests and flushes every open editing session.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.sessions.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	s.logger.Infof("Scribe UI running at http://%s", s.http.Addr)
	if strings.Contains(s.http.Addr, "0.0.0.0") || strings.Contains(s.http.Addr, "::") {
		s.logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		s.sessions.Stop()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	httpErr := s.http.Shutdown(shutdownCtx)
	if err := s.sessions.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("session shutdown incomplete", logger.Error(err))
	}
	return httpErr
}

