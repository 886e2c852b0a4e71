package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status    string    `json:"status"`
	LastScan  time.Time `json:"last_scan,omitempty"`
	Modules   int       `json:"modules"`
	Cycles    int       `json:"cycles"`
	StartedAt time.Time `json:"started_at"`
}

// Server exposes /metrics and /health over HTTP.
type Server struct {
	addr      string
	server    *http.Server
	listener  net.Listener
	startedAt time.Time

	mu       sync.RWMutex
	lastScan time.Time
	modules  int
	cycles   int
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Handler returns the mux served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.Health()
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// RecordScan updates the figures reported by /health.
func (s *Server) RecordScan(modules, cycles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScan = time.Now().UTC()
	s.modules = modules
	s.cycles = cycles
}

func (s *Server) Health() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := "up"
	if s.lastScan.IsZero() {
		status = "starting"
	}
	return HealthStatus{
		Status:    status,
		LastScan:  s.lastScan,
		Modules:   s.modules,
		Cycles:    s.cycles,
		StartedAt: s.startedAt,
	}
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.startedAt = time.Now().UTC()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
