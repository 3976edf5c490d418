// Package server implements the HTTP server that exposes the conversation
// pipeline via a JSON API. The server is started by the `localwhisper serve`
// CLI command. Sessions live in memory, keyed by a caller-chosen session id;
// turns within one session are serialized, different sessions run
// concurrently.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luzgui1/localwhisper/internal/logging"
	"github.com/luzgui1/localwhisper/internal/orchestrator"
	"github.com/luzgui1/localwhisper/internal/places"
	"github.com/luzgui1/localwhisper/internal/store"
)

// composeHistoryWindow is how many prior turns are handed to the composer
// for conversational continuity.
const composeHistoryWindow = 8

// transcriptTimeout bounds the best-effort transcript write so a slow disk
// never delays the reply.
const transcriptTimeout = 3 * time.Second

// New constructs a Server from the provided orchestrator, composer, and config.
func New(turns turnHandler, compose replier, cfg *Config) (*Server, error) {
	if turns == nil {
		return nil, fmt.Errorf("server: orchestrator must not be nil")
	}
	if compose == nil {
		return nil, fmt.Errorf("server: composer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// A turn can involve several model calls; give replies room to finish.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	rps := cfg.RateLimit
	if rps == 0 {
		rps = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = defaultRateBurst
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := newServerMetrics(reg)

	s := &Server{
		turns:      turns,
		compose:    compose,
		transcript: cfg.Transcript,
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
		pingers:    cfg.Pingers,
	}

	var stopSessions func()
	s.sessions, stopSessions = newSessionRegistry(cfg.SessionTTL, func(live int) {
		metrics.activeSessions.Set(float64(live))
	})

	rl, stopRL := newRateLimiter(rps, burst, log)
	s.stopRL = func() {
		stopRL()
		stopSessions()
	}

	if cfg.APIKey == "" {
		log.Warn("server: LOCALWHISPER_API_KEY not set — API authentication is disabled")
	}

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect("chat", s.handleChat))
	mux.Handle("POST /api/location", protect("location", s.handleLocation))
	mux.Handle("POST /api/session/reset", protect("session_reset", s.handleReset))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat: one conversation turn end to end.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required", "")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	entry, existed := s.sessions.get(req.SessionID)
	if !existed {
		log.Info("session created", slog.String("session_id", req.SessionID))
	}
	s.metrics.activeSessions.Set(float64(s.sessions.len()))

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// History snapshot before this turn is appended — the composer needs the
	// prior context, not the message it is replying to.
	recent := entry.state.Recent(composeHistoryWindow)

	start := time.Now()
	d, err := s.turns.HandleTurn(r.Context(), req.Message, entry.state)
	if err != nil {
		s.failTurn(w, log, "unknown", err)
		return
	}

	reply, err := s.compose.Reply(r.Context(), req.Message, recent, d)
	if err != nil {
		s.failTurn(w, log, string(d.Kind), err)
		return
	}

	// The smalltalk branch records its reply during orchestration; every
	// other branch is recorded here once the composed text exists.
	if d.Kind != orchestrator.DirectiveSmalltalk {
		s.turns.RecordReply(entry.state, reply)
	}

	s.persistTurn(req.SessionID, req.Message, reply, log)

	s.metrics.turnsTotal.WithLabelValues(string(d.Kind), "ok").Inc()
	s.metrics.turnDurationSeconds.WithLabelValues(string(d.Kind)).Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: req.SessionID,
		Reply:     reply,
		Intent:    string(d.Decision.Intent),
		Kind:      string(d.Kind),
		Fetched:   d.Fetched,
	})
}

// failTurn maps a turn failure to an HTTP response and records metrics.
// Capability failures are reported as 503 with the capability name so
// clients can distinguish a degraded backend from a server bug.
func (s *Server) failTurn(w http.ResponseWriter, log *slog.Logger, branch string, err error) {
	if ce := orchestrator.AsCapabilityError(err); ce != nil {
		log.Warn("turn failed: capability degraded",
			slog.String("capability", ce.Capability),
			slog.Any("error", err),
		)
		s.metrics.turnsTotal.WithLabelValues(branch, "capability_error").Inc()
		writeError(w, http.StatusServiceUnavailable, "a required capability is unavailable", ce.Capability)
		return
	}

	log.Error("turn failed", slog.Any("error", err))
	s.metrics.turnsTotal.WithLabelValues(branch, "error").Inc()
	writeError(w, http.StatusInternalServerError, "internal error", "")
}

// persistTurn writes the user message and assistant reply to the transcript
// store. Failures are logged and never surfaced to the client.
func (s *Server) persistTurn(sessionID, message, reply string, log *slog.Logger) {
	if s.transcript == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), transcriptTimeout)
	defer cancel()

	if err := s.transcript.Append(ctx, sessionID, store.RoleUser, message); err != nil {
		log.Warn("transcript: failed to persist user turn", slog.Any("error", err))
		return
	}
	if err := s.transcript.Append(ctx, sessionID, store.RoleAssistant, reply); err != nil {
		log.Warn("transcript: failed to persist assistant turn", slog.Any("error", err))
	}
}

// handleLocation handles POST /api/location: attach coordinates to a session.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required", "")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required", "")
		return
	}

	entry, _ := s.sessions.get(req.SessionID)
	s.metrics.activeSessions.Set(float64(s.sessions.len()))

	entry.mu.Lock()
	defer entry.mu.Unlock()

	loc := places.Location{Lat: *req.Lat, Lng: *req.Lng}
	if !entry.state.SetLocation(loc) {
		writeError(w, http.StatusBadRequest, "invalid coordinates", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleReset handles POST /api/session/reset: discard a session's state.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required", "")
		return
	}

	existed := s.sessions.drop(req.SessionID)
	s.metrics.activeSessions.Set(float64(s.sessions.len()))

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "existed": existed})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument wraps a handler with the shared HTTP request metrics.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, fmt.Sprintf("%d", rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError encodes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg, capability string) {
	writeJSON(w, status, errorResponse{Error: msg, Capability: capability})
}
