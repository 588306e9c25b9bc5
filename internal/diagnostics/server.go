// Package diagnostics serves a read-only view of the console over HTTP.
//
// Routes:
//   - GET /health     status of the vehicle channel and telemetry recorder
//   - GET /status     connection status, retry state and inbound counters
//   - GET /addresses  recently used vehicle endpoints
//
// The server binds to localhost by default and never accepts commands.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rovlink/rovconsole/internal/connection"
	"github.com/rovlink/rovconsole/internal/store"
	"github.com/rovlink/rovconsole/internal/version"
	"github.com/rovlink/rovconsole/internal/writer"
)

const (
	defaultAddressLimit = 10
	maxAddressLimit     = 100
	shutdownTimeout     = 5 * time.Second
)

// StatusSource is the part of the Connection Manager the server reads.
type StatusSource interface {
	Stats() connection.ManagerStats
	LastAddress() string
}

// AddressLister lists recently used endpoints.
type AddressLister interface {
	Recent(ctx context.Context, n int) ([]store.Endpoint, error)
}

// WriterStats reports telemetry recorder counters.
type WriterStats interface {
	Stats() writer.WriterMetrics
}

// Server is the diagnostics HTTP server.
type Server struct {
	addr      string
	status    StatusSource
	addresses AddressLister
	telemetry WriterStats
	sessionID string
	started   time.Time
	logger    *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithAddressLister enables GET /addresses.
func WithAddressLister(l AddressLister) Option {
	return func(s *Server) { s.addresses = l }
}

// WithTelemetry adds recorder counters to /health and /status.
func WithTelemetry(w WriterStats) Option {
	return func(s *Server) { s.telemetry = w }
}

// WithSessionID tags responses with the console session.
func WithSessionID(id string) Option {
	return func(s *Server) { s.sessionID = id }
}

// New creates a diagnostics server listening on host:port.
func New(host string, port int, status StatusSource, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		status:  status,
		started: time.Now(),
		logger:  logger.With("component", "diagnostics"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/addresses", s.handleAddresses).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting diagnostics server", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("diagnostics server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("diagnostics shutdown", "error", err)
	}
	return nil
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	SessionID  string         `json:"session_id,omitempty"`
	Uptime     string         `json:"uptime"`
	Components map[string]any `json:"components"`
}

// handleHealth reports "healthy" while connected, "degraded" while connecting
// or disconnected, and "unhealthy" (503) once retries are exhausted.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.status.Stats()

	health := healthResponse{
		Status:     "healthy",
		Version:    version.Version,
		SessionID:  s.sessionID,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Components: make(map[string]any),
	}

	vehicle := map[string]any{"status": stats.Status}
	if stats.Address != "" {
		vehicle["address"] = stats.Address
	}
	health.Components["vehicle"] = vehicle

	switch stats.Status {
	case connection.StatusConnected:
	case connection.StatusFailed:
		health.Status = "unhealthy"
	default:
		health.Status = "degraded"
	}

	if s.telemetry != nil {
		m := s.telemetry.Stats()
		health.Components["telemetry"] = map[string]any{
			"inserts": m.Inserts,
			"errors":  m.Errors,
		}
	}

	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, health)
}

type statusResponse struct {
	connection.ManagerStats
	LastAddress string                `json:"last_address"`
	Telemetry   *writer.WriterMetrics `json:"telemetry,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		ManagerStats: s.status.Stats(),
		LastAddress:  s.status.LastAddress(),
	}
	if s.telemetry != nil {
		m := s.telemetry.Stats()
		resp.Telemetry = &m
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	if s.addresses == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "address history is disabled"})
		return
	}

	limit := defaultAddressLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAddressLimit {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be between 1 and " + strconv.Itoa(maxAddressLimit),
			})
			return
		}
		limit = n
	}

	endpoints, err := s.addresses.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list addresses", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list addresses"})
		return
	}
	if endpoints == nil {
		endpoints = []store.Endpoint{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(endpoints),
		"addresses": endpoints,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
