// Package server serves the dashboard REST API: metrics and chart
// aggregates over the filtered session table, filter options, a CSV
// export, and cache controls.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopview/shopview/internal/cache"
	"github.com/shopview/shopview/internal/config"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server that serves the dashboard API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	cache   *cache.Snapshot
	log     zerolog.Logger
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server.
func New(
	cfg config.Config, snap *cache.Snapshot, logger zerolog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:   cfg,
		cache: snap,
		log:   logger,
		mux:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithHandlerDelay delays every timeout-wrapped handler; tests use it
// to force timeouts deterministically.
func WithHandlerDelay(d time.Duration) Option {
	return func(s *Server) { s.handlerDelay = d }
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/v1/dashboard", s.withTimeout(s.handleDashboard))
	s.mux.Handle("GET /api/v1/sessions", s.withTimeout(s.handleListSessions))
	s.mux.Handle("GET /api/v1/filters", s.withTimeout(s.handleFilterOptions))
	// Export: no timeout handler, to support large downloads and avoid buffering.
	s.mux.Handle("GET /api/v1/export", http.HandlerFunc(s.handleExport))
	s.mux.Handle("GET /api/v1/stats", s.withTimeout(s.handleStats))
	s.mux.Handle("POST /api/v1/refresh", s.withTimeout(s.handleRefresh))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleStats(
	w http.ResponseWriter, r *http.Request,
) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	fetchedAt, _ := s.cache.FetchedAt()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":          len(table),
		"fetched_at":        fetchedAt.UTC().Format(time.RFC3339),
		"cache_ttl_seconds": int(s.cache.TTL().Seconds()),
	})
}

func (s *Server) handleRefresh(
	w http.ResponseWriter, _ *http.Request,
) {
	s.cache.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.requestLog(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	s.log.Info().Str("addr", addr).Msg("starting server")
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}
