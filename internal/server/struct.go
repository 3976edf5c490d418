package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/luzgui1/localwhisper/internal/orchestrator"
	"github.com/luzgui1/localwhisper/internal/session"
	"github.com/luzgui1/localwhisper/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// SessionTTL is how long an idle session is kept before eviction.
	// Defaults to 30 minutes if zero.
	SessionTTL time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Transcript is the optional persistent transcript store. When nil,
	// turns are not persisted.
	Transcript store.TranscriptStore
}

// turnHandler is the interface handleChat calls to run one conversation turn.
// *orchestrator.Orchestrator satisfies it; tests inject a fake.
type turnHandler interface {
	// HandleTurn resolves one user turn into a directive.
	HandleTurn(ctx context.Context, userText string, state *session.State) (*orchestrator.Directive, error)
	// RecordReply appends the assistant reply to the session history.
	RecordReply(state *session.State, text string)
}

// replier is the interface handleChat calls to turn a directive into the
// final reply text. *compose.Composer satisfies it; tests inject a fake.
type replier interface {
	// Reply composes the user-facing reply for the given directive.
	Reply(ctx context.Context, userText string, recent []session.Turn, d *orchestrator.Directive) (string, error)
}

// Server is the HTTP server that exposes the conversation pipeline.
type Server struct {
	// turns runs the orchestration for each chat turn.
	turns turnHandler
	// compose turns directives into user-facing reply text.
	compose replier
	// sessions is the in-memory session registry keyed by session id.
	sessions *sessionRegistry
	// transcript persists turns for operator review; nil disables persistence.
	transcript store.TranscriptStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// SessionID identifies the conversation; a new session is created on
	// first use of an unseen id.
	SessionID string `json:"session_id"`
	// Message is the user's natural language message.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// SessionID echoes the conversation id.
	SessionID string `json:"session_id"`
	// Reply is the assistant's reply text.
	Reply string `json:"reply"`
	// Intent is the routed intent for this turn.
	Intent string `json:"intent"`
	// Kind is the directive branch that produced the reply.
	Kind string `json:"kind"`
	// Fetched reports whether this turn issued a fresh venue fetch.
	Fetched bool `json:"fetched"`
}

// locationRequest is the JSON body for POST /api/location.
// Lat and Lng are pointers so that a missing field is distinguishable from
// a legitimate zero coordinate.
type locationRequest struct {
	// SessionID identifies the conversation.
	SessionID string `json:"session_id"`
	// Lat is the latitude in degrees.
	Lat *float64 `json:"lat"`
	// Lng is the longitude in degrees.
	Lng *float64 `json:"lng"`
}

// resetRequest is the JSON body for POST /api/session/reset.
type resetRequest struct {
	// SessionID identifies the conversation to discard.
	SessionID string `json:"session_id"`
}

// errorResponse is the JSON error body for all /api/* failures.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
	// Capability names the degraded external capability, when known.
	Capability string `json:"capability,omitempty"`
}
