// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves warden's operational endpoints: Prometheus
// metrics and the liveness and readiness checks backed by the access store.
package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// CodeAlreadyRunning is returned by Start on a server that is serving.
const CodeAlreadyRunning = "OBSERVABILITY_RUNNING"

// ReadinessChecker reports why warden cannot serve, or nil when it can.
type ReadinessChecker func(ctx context.Context) error

// Pinger reports backend reachability. Every store.Store is one.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingReadiness bounds each readiness check on p by timeout.
func PingReadiness(p Pinger, timeout time.Duration) ReadinessChecker {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.Ping(ctx)
	}
}

// Metrics holds the per-route HTTP API instruments.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the API instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_http_requests_total",
			Help: "Access-control API requests by route pattern and status code",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_http_request_duration_seconds",
			Help:    "Access-control API latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr    string
	ready   ReadinessChecker
	metrics *Metrics
	gather  prometheus.Gatherers

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

// NewServer creates a server for addr. A nil ready always reports ready.
//
// API metrics get their own registry; the access package's counters and the
// Go runtime collectors stay on the default one and both are gathered.
func NewServer(addr string, ready ReadinessChecker) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		addr:    addr,
		ready:   ready,
		metrics: NewMetrics(reg),
		gather:  prometheus.Gatherers{prometheus.DefaultGatherer, reg},
	}
}

// Metrics returns the instruments the API handler records into.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.Get("/healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/healthz/readiness", s.readiness)
	return r
}

// Start listens on the configured address and serves in the background.
// The returned channel carries a serve failure and is closed once serving
// ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil, oops.Code(CodeAlreadyRunning).With("addr", s.addr).Errorf("observability server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.ln, s.srv = ln, srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "addr", ln.Addr().String(), "error", err)
			errCh <- err
		}
	}()

	slog.Info("observability server started", "addr", ln.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op; a failed shutdown leaves it stoppable again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return oops.With("addr", s.ln.Addr().String()).With("operation", "shutdown_observability_server").Wrap(err)
	}
	s.srv = nil
	slog.Info("observability server stopped", "addr", s.ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			writeStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeStatus(w, http.StatusOK, "ok")
}

func writeStatus(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	//nolint:errcheck // the client may already be gone
	io.WriteString(w, body+"\n")
}
