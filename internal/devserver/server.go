// Package devserver serves the mail API the REST backend talks to, backed by
// a local SQLite store. It signs every request in as a single configured
// user and exists for development and end-to-end tests.
package devserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gologme/log"

	"github.com/nhle/mailclient/internal/store"
)

// shutdownTimeout bounds the graceful shutdown in ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Config holds configuration for creating a Server.
type Config struct {
	// User is the account every request acts as. It is created on start.
	User string

	// Token, when set, must be presented as a Bearer token.
	Token string

	Logger *log.Logger
}

// Server is the development mail API.
type Server struct {
	cfg    Config
	store  store.Store
	log    *log.Logger
	router chi.Router
}

// New creates a server over st and registers cfg.User.
func New(ctx context.Context, st store.Store, cfg Config) (*Server, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("dev server user is required")
	}
	if err := st.CreateUser(ctx, cfg.User); err != nil {
		return nil, fmt.Errorf("registering %s: %w", cfg.User, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Server{cfg: cfg, store: st, log: logger}
	s.router = s.setupRouter()
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/emails/{mailbox}", s.handleGet)
		r.Put("/emails/{id}", s.handleUpdate)
		r.Post("/emails", s.handleCreate)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if s.cfg.Token == "" {
		s.log.Warnf("dev server running without authentication on %s", addr)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("dev server listening on %s as %s", addr, s.cfg.User)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("shutting down dev server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.Infof("%s %s -> %d (%d bytes) in %s [%s]",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
				time.Since(start), chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware validates the Bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("Authorization")
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			s.log.Warnf("unauthorized request to %s from %s", r.URL.Path, r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
