// Package api implements the mtgprep HTTP JSON API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtgprep/mtgprep/internal/brief"
	"github.com/mtgprep/mtgprep/internal/buildinfo"
	"github.com/mtgprep/mtgprep/internal/slack"
	"github.com/mtgprep/mtgprep/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Service is the brief pipeline the API exposes.
type Service interface {
	Channels(ctx context.Context) ([]slack.Channel, error)
	PrepareConversationBrief(ctx context.Context, req brief.ConversationRequest) (*brief.Result, error)
	ResearchAttendees(ctx context.Context, attendees []brief.AttendeeInput, targetCompany string, checkCRM bool) (*brief.AttendeeResearch, error)
	PrepareBDReport(ctx context.Context, req brief.BDRequest) (*brief.Result, error)
	AddToCRM(ctx context.Context, a brief.AttendeeInput) (*brief.CRMAddResult, error)
	PreviewBDPrompt(ctx context.Context, req brief.BDRequest) (*brief.Preview, error)
}

// UsageLog lists recorded usage events and aggregates them by period.
type UsageLog interface {
	Recent(ctx context.Context, eventType string, limit int) ([]usage.Event, error)
	Report(start, end time.Time) (*usage.Report, error)
}

// Generation can take several minutes: collection, research and a
// reasoning call with its own multi-minute deadline.
const writeTimeout = 10 * time.Minute

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	svc     Service
	usage   UsageLog
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		svc:     svc,
		logger:  logger.With("component", "api"),
	}
}

// SetUsageLog configures the store behind /api/usage-logs.
func (s *Server) SetUsageLog(u UsageLog) {
	s.usage = u
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	// Internal meeting brief
	mux.HandleFunc("GET /api/channels", s.handleChannels)
	mux.HandleFunc("POST /api/run", s.handleRun)

	// Business development workflow
	mux.HandleFunc("POST /api/bd/research-attendees", s.handleResearchAttendees)
	mux.HandleFunc("POST /api/bd/generate", s.handleBDGenerate)
	mux.HandleFunc("POST /api/bd/add-to-hubspot", s.handleAddToHubSpot)

	// Introspection
	mux.HandleFunc("POST /api/debug/prompt-preview", s.handlePromptPreview)
	mux.HandleFunc("GET /api/usage-logs", s.handleUsageLogs)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := usage.WithClientIP(r.Context(), clientIP(r))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Info("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// clientIP returns the originating address, preferring the first
// X-Forwarded-For hop set by a reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "mtgprep",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}
