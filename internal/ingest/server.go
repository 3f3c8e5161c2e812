package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/petersohn/home-automation/internal/infrastructure/config"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Server is the HTTP ingestion surface devices report to.
//
// Lifecycle:
//
//	server := ingest.NewServer(cfg, service, logger)
//	server.Start()
//	defer server.Close()
type Server struct {
	cfg     config.ServerConfig
	service *Service
	log     *slog.Logger
	server  *http.Server
}

// NewServer creates the HTTP server. It is not listening until Start.
func NewServer(cfg *config.Config, service *Service, log *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg.Server,
		service: service,
		log:     log,
	}
	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port)),
		Handler:      s.buildRouter(),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	}
	return s
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	return r
}

// Start begins listening in the background. Listener errors other than a
// clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.log.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", "error", err)
		}
	}()
}

// Close drains in-flight requests and shuts the listener down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleStatus ingests one device report.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var report Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding report: %v", err))
		return
	}

	peerHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP middleware may leave a bare host.
		peerHost = r.RemoteAddr
	}

	if err := s.service.ProcessReport(r.Context(), report, peerHost); err != nil {
		if errors.Is(err, ErrInvalidReport) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("processing report failed", "device", report.Device.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": status, "error": message})
}
