package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/luzgui1/localwhisper/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready answers promptly
// even when a backend hangs rather than refuses.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability. Ping returns
// nil when healthy. Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses ("ollama", "places").
	Name() string
}

// MultiPinger folds several Pingers into one, failing on the first unhealthy
// dependency.
type MultiPinger struct {
	pingers []Pinger
}

// NewMultiPinger constructs a MultiPinger over the given probes.
func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping probes each dependency in order and returns the first failure, tagged
// with the dependency's name.
func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Name implements Pinger.
func (m *MultiPinger) Name() string { return "multi" }

// readyCheck is one dependency's result in the readiness response.
type readyCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Error carries the failure reason; empty when OK.
	Error string `json:"error,omitempty"`
}

// readyResponse is the body of GET /api/ready.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready. Every configured Pinger is probed with
// its own timeout; any failure turns the response into a 503. /api/health
// stays a pure liveness check — this endpoint is the one that reflects
// backend state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	for _, p := range s.pingers {
		check := probe(r.Context(), p)
		if !check.OK {
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", check.Name),
				slog.String("error", check.Error),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// probe runs a single dependency check under the probe timeout.
func probe(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return readyCheck{Name: p.Name(), Error: err.Error()}
	}
	return readyCheck{Name: p.Name(), OK: true}
}
