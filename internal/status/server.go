// Package status exposes the read-only operational surface of the runner:
// health, the configured job set, recent firing history, and metrics.
// Nothing in the scheduling path depends on it.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hi-liyan/rjob/internal/history"
	"github.com/hi-liyan/rjob/internal/job"
)

// recentLimit bounds the history slice returned by GET /status.
const recentLimit = 50

// Config holds status server settings.
type Config struct {
	Bind         string
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// HistorySource is the subset of the history store the server reads.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Firing, error)
}

// Server is the status HTTP server.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	registry  *job.Registry
	metrics   *Metrics
	history   HistorySource // nil = history disabled
	startedAt time.Time
	server    *http.Server
}

// NewServer validates the bind address and builds the server. history may
// be nil when the firing-history store is not configured.
func NewServer(cfg Config, registry *job.Registry, metrics *Metrics, hist HistorySource, logger *slog.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	if _, err := net.ResolveTCPAddr("tcp", cfg.Bind); err != nil {
		return nil, errors.New("status: invalid bind address: " + cfg.Bind)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		history:  hist,
	}, nil
}

// Metrics returns the server's collectors for wiring into the executor.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.cfg.Bind,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.cfg.Bind)
	if err != nil {
		return errors.New("status: listen failed: " + err.Error())
	}

	s.logger.Info("status: server listening", "bind", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status: server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address. Valid after Start.
func (s *Server) Addr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth())
	r.Get("/status", s.handleStatus())
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Jobs    int    `json:"jobs"`
	Enabled int    `json:"enabled"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Jobs:    s.registry.Len(),
			Enabled: s.registry.Enabled(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// JobStatus is one job definition as reported by GET /status.
type JobStatus struct {
	Name   string `json:"name"`
	Enable bool   `json:"enable"`
	Cron   string `json:"cron"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   float64          `json:"uptime_seconds"`
	Timezone string           `json:"timezone"`
	Jobs     []JobStatus      `json:"jobs"`
	Recent   []history.Firing `json:"recent,omitempty"`
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime:   time.Since(s.startedAt).Truncate(time.Second).Seconds(),
			Timezone: s.registry.Timezone(),
		}

		for _, j := range s.registry.Jobs() {
			resp.Jobs = append(resp.Jobs, JobStatus{
				Name:   j.Name,
				Enable: j.Enable,
				Cron:   j.Cron,
				Method: job.ResolveMethod(j.Request.Method),
				URL:    j.Request.URL,
			})
		}

		if s.history != nil {
			recent, err := s.history.Recent(r.Context(), recentLimit)
			if err != nil {
				s.logger.Error("status: reading firing history failed", "error", err)
			} else {
				resp.Recent = recent
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
