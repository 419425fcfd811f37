// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package web serves the JSON HTTP API: account management, per-user
// contacts, and the user-scoped cache surface. All authenticated routes
// take a bearer token issued at login.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/contactdir/contactdir/internal/auth"
	"github.com/contactdir/contactdir/internal/cache"
	"github.com/contactdir/contactdir/internal/contacts"
	"github.com/contactdir/contactdir/internal/observability"
	"github.com/contactdir/contactdir/internal/session"
)

// Deps carries the collaborators the server needs. Metrics and Logger are
// optional; everything else is required.
type Deps struct {
	Auth     *auth.Service
	Contacts *contacts.Service
	Sessions *session.Manager
	Cache    *cache.Client
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	addr       string
	auth       *auth.Service
	contacts   *contacts.Service
	sessions   *session.Manager
	cache      *cache.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the API server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if deps.Contacts == nil {
		return nil, oops.Errorf("contacts service is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if deps.Cache == nil {
		return nil, oops.Errorf("cache client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		auth:     deps.Auth,
		contacts: deps.Contacts,
		sessions: deps.Sessions,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		logger:   logger,
	}, nil
}

// Handler returns the routed API handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.instrument("/api/auth/register", s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.instrument("/api/auth/login", s.handleLogin))
	mux.HandleFunc("POST /api/auth/reset-password", s.instrument("/api/auth/reset-password", s.handleResetPassword))
	mux.HandleFunc("POST /api/auth/logout", s.instrument("/api/auth/logout", s.requireSession(s.handleLogout)))
	mux.HandleFunc("GET /api/auth/me", s.instrument("/api/auth/me", s.requireSession(s.handleMe)))

	mux.HandleFunc("GET /api/contacts", s.instrument("/api/contacts", s.requireSession(s.handleListContacts)))
	mux.HandleFunc("POST /api/contacts", s.instrument("/api/contacts", s.requireSession(s.handleAddContact)))
	mux.HandleFunc("GET /api/contacts/{id}", s.instrument("/api/contacts/{id}", s.requireSession(s.handleGetContact)))
	mux.HandleFunc("PUT /api/contacts/{id}", s.instrument("/api/contacts/{id}", s.requireSession(s.handleUpdateContact)))
	mux.HandleFunc("DELETE /api/contacts/{id}", s.instrument("/api/contacts/{id}", s.requireSession(s.handleDeleteContact)))

	mux.HandleFunc("PUT /api/cache/{key}", s.instrument("/api/cache/{key}", s.requireSession(s.handlePutCacheEntry)))
	mux.HandleFunc("GET /api/cache/{key}", s.instrument("/api/cache/{key}", s.requireSession(s.handleGetCacheEntry)))
	mux.HandleFunc("DELETE /api/cache/{key}", s.instrument("/api/cache/{key}", s.requireSession(s.handleDeleteCacheEntry)))
	mux.HandleFunc("DELETE /api/cache", s.instrument("/api/cache", s.requireSession(s.handleDeleteCacheMatching)))

	return mux
}

// Start begins serving the API. It returns an error channel that receives
// any error from the HTTP server after startup; the channel is closed on
// graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
