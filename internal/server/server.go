// Package server exposes Earshot's operational HTTP surface: Prometheus
// metrics, health endpoints, and a websocket feed of live session state.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/earshot-ai/earshot/internal/health"
	"github.com/earshot-ai/earshot/internal/observe"
)

// defaultStateInterval is how often the websocket feed pushes a fresh state
// snapshot when no interval is configured.
const defaultStateInterval = 2 * time.Second

// State is one snapshot of the listening session, pushed to websocket
// subscribers and served on /state.
type State struct {
	// SessionID identifies the current listening session.
	SessionID string `json:"session_id"`

	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// UptimeSeconds is the session age at snapshot time.
	UptimeSeconds float64 `json:"uptime_seconds"`

	// Answered counts sentences that produced a spoken reply.
	Answered int64 `json:"answered"`

	// Discarded counts sentences dropped by the gate without a trace.
	Discarded int64 `json:"discarded"`

	// Turns is the number of exchanges in the in-prompt history window.
	Turns int `json:"turns"`

	// MemoryDegraded reports whether the transcript log backend is
	// currently failing.
	MemoryDegraded bool `json:"memory_degraded"`
}

// StateFunc produces the current session state for the feed.
type StateFunc func() State

// Config holds dependencies for creating a Server.
type Config struct {
	// ListenAddr is the address the HTTP server binds to, e.g. ":8080".
	ListenAddr string

	// Health serves /healthz and /readyz. When nil a handler with no
	// readiness checkers is used.
	Health *health.Handler

	// State produces session snapshots for /state and /ws/state. When nil
	// both endpoints return empty snapshots.
	State StateFunc

	// StateInterval is the websocket push period. Default: 2 seconds.
	StateInterval time.Duration

	// Metrics instruments the HTTP surface. Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server is the operational HTTP server. Create one with [New].
type Server struct {
	httpSrv  *http.Server
	handler  http.Handler
	state    StateFunc
	interval time.Duration
}

// New creates a Server with all routes registered.
func New(cfg Config) *Server {
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.State == nil {
		cfg.State = func() State { return State{} }
	}
	if cfg.StateInterval <= 0 {
		cfg.StateInterval = defaultStateInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		state:    cfg.State,
		interval: cfg.StateInterval,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /state", s.handleState)
	cfg.Health.Register(mux)

	// The websocket upgrade needs the raw ResponseWriter, so the feed route
	// sits outside the instrumentation middleware.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /ws/state", s.handleStateFeed)
	outer.Handle("/", observe.Middleware(cfg.Metrics)(mux))

	s.handler = outer
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully assembled route handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start runs the HTTP server until it is shut down. Blocks; run it in a
// goroutine. Returns nil after a clean Shutdown.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
