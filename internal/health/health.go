// Package health provides a simple HTTP health check endpoint.
//
// Docker and Kubernetes use /healthz to monitor the daemon's liveness.
// /readyz also reports the narration lock, so operators can see whether an
// instance is busy and who holds the lock.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nadzzz/voiceover/internal/lock"
)

// LockProbe reports the narration lock state.
type LockProbe func(ctx context.Context) (lock.Status, error)

// Server is a lightweight HTTP server that exposes /healthz and /readyz.
type Server struct {
	port   int
	probe  LockProbe
	ready  atomic.Bool
	server *http.Server
}

// New creates a new health check server. probe may be nil.
func New(port int, probe LockProbe) *Server {
	return &Server{port: port, probe: probe}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// readiness is the /readyz body.
type readiness struct {
	Status string       `json:"status"`
	Busy   bool         `json:"busy"`
	Lock   *lock.Status `json:"lock,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Handler returns the health routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, readiness{Status: "not_ready"})
			return
		}
		body := readiness{Status: "ok"}
		if s.probe != nil {
			st, err := s.probe(r.Context())
			if err != nil {
				body.Status = "degraded"
				body.Error = err.Error()
				writeJSON(w, http.StatusServiceUnavailable, body)
				return
			}
			body.Lock = &st
			body.Busy = st.Held
		}
		writeJSON(w, http.StatusOK, body)
	})

	return mux
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
