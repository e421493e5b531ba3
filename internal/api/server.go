// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api exposes the access-control service over HTTP.
//
// Callers are authenticated upstream; the proxy forwards the verified
// identity in the X-Caller-Identity header.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/observability"
)

// CallerHeader carries the authenticated caller identity.
const CallerHeader = "X-Caller-Identity"

// Handler serves the access-control API.
type Handler struct {
	svc     *access.Service
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(svc *access.Service, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, metrics: metrics, logger: logger}
}

// Router returns the chi router for all API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)
	r.Use(callerIdentity)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/admin/init", h.initAdmin)

		r.Get("/roles", h.listRoles)
		r.Get("/roles/{role}/holder", h.getHolder)
		r.Put("/roles/{role}/holder", h.setHolder)
		r.Get("/roles/{role}/holders", h.getHolders)
		r.Put("/roles/{role}/holders", h.setHolders)
		r.Get("/roles/{role}/members/{identity}", h.hasRole)
		r.Post("/roles/{role}/require", h.requireRole)

		r.Get("/transfers/{role}", h.getTransfer)
		r.Post("/transfers/{role}", h.commitTransfer)
		r.Post("/transfers/{role}/apply", h.applyTransfer)
		r.Delete("/transfers/{role}", h.revertTransfer)

		r.Get("/emergency", h.getEmergency)
		r.Put("/emergency", h.setEmergency)
	})

	return r
}

// callerIdentity copies the caller header into the request context.
func callerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller := r.Header.Get(CallerHeader); caller != "" {
			r = r.WithContext(access.WithCaller(r.Context(), access.Identity(caller)))
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency by route pattern.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Server runs the API on a TCP listener.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server for handler on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving. The returned channel reports serve errors and is
// closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.In("api").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.In("api").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.In("api").With("operation", "shutdown_api_server").Wrap(err)
	}
	slog.Info("api server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
