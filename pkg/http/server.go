// Package http serves the errwatch API: error ingestion and queries, the
// badge, a WebSocket event stream, health and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/armorclaw/errwatch/pkg/errors"
	"github.com/armorclaw/errwatch/pkg/eventbus"
	"github.com/armorclaw/errwatch/pkg/logger"
	"github.com/armorclaw/errwatch/pkg/websocket"
)

const (
	// UnknownContext labels reports that carry neither a context nor a Referer
	UnknownContext = "Unknown Context"

	maxReportBody = 256 * 1024
)

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	IngestRate     float64 // Sustained reports per second
	IngestBurst    int
	Version        string
	WebSocket      websocket.Config
}

// Server is the errwatch HTTP server
type Server struct {
	config     ServerConfig
	service    *errors.Service
	bus        *eventbus.EventBus
	ws         *websocket.Handler
	limiter    *rate.Limiter
	started    time.Time
	log        *logger.Logger
	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	stopped    bool
}

// ReportRequest is the body of POST /api/errors
type ReportRequest struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Level   string `json:"level,omitempty"`
	Context string `json:"context,omitempty"`
}

// BadgeResponse is the body of GET /api/badge
type BadgeResponse struct {
	Text  string       `json:"text"`
	Color errors.Color `json:"color"`
	Hex   string       `json:"hex"`
}

// SweepResponse is the body of POST /api/errors/sweep
type SweepResponse struct {
	Purged int `json:"purged"`
}

// NewServer creates a new API server
func NewServer(config ServerConfig, service *errors.Service, bus *eventbus.EventBus) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:7391"
	}
	if config.IngestRate <= 0 {
		config.IngestRate = 20
	}
	if config.IngestBurst < 1 {
		config.IngestBurst = 40
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.WebSocket.AllowedOrigins == nil {
		config.WebSocket.AllowedOrigins = config.AllowedOrigins
	}

	return &Server{
		config:  config,
		service: service,
		bus:     bus,
		ws:      websocket.NewHandler(bus, config.WebSocket),
		limiter: rate.NewLimiter(rate.Limit(config.IngestRate), config.IngestBurst),
		started: time.Now(),
		log:     logger.Global().WithComponent("http"),
	}
}

// Handler returns the routed handler wrapped in the CORS middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/errors", s.handleList)
	mux.HandleFunc("POST /api/errors", s.handleReport)
	mux.HandleFunc("DELETE /api/errors", s.handleClearAll)
	mux.HandleFunc("POST /api/errors/sweep", s.handleSweep)
	mux.HandleFunc("GET /api/errors/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/errors/{id}", s.handleClear)
	mux.HandleFunc("GET /api/badge", s.handleBadge)
	mux.Handle("GET /ws", s.ws)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.corsMiddleware(mux)
}

// Start binds the listen address and serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))

	if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down. A Start that has not bound yet
// returns nil without serving.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.log.Info("stopping HTTP server")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetAll())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.service.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "error not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	req := decodeReport(body)

	label := req.Context
	if label == "" {
		label = r.Referer()
	}
	if label == "" {
		label = UnknownContext
	}

	rec := s.service.Report(&reportedError{message: req.Message, stack: req.Stack}, errors.Level(req.Level), label)
	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.service.Clear(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.service.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SweepResponse{Purged: s.service.Sweep()})
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	badge := s.service.Badge()
	writeJSON(w, http.StatusOK, BadgeResponse{
		Text:  badge.Text,
		Color: badge.Color,
		Hex:   badge.Color.Hex(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.service.Running() {
		status = "stopped"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     s.config.Version,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"errors":      s.service.Len(),
		"subscribers": s.bus.SubscriberCount(),
		"connections": s.ws.Connections(),
		"eventbus":    s.bus.GetStats(),
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// reportedError carries a client supplied message and stack into Report
type reportedError struct {
	message string
	stack   string
}

func (e *reportedError) Error() string { return e.message }

func (e *reportedError) Stack() string { return e.stack }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
