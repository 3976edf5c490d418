// Package session holds the per-conversation mutable context: chat history,
// the user's location once obtained, and the cached candidate snapshot from
// the most recent fetch. A State lives for exactly one conversation and is
// owned by the caller; the orchestrator is its only writer during a turn,
// and the caller must serialize turns on the same State (concurrent sessions
// are independent and share nothing).
package session

import "github.com/luzgui1/localwhisper/internal/places"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a message sent by the human.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Turn is a single message in the conversation history.
type Turn struct {
	// Role is the author of the turn.
	Role Role
	// Text is the message content.
	Text string
}

// State is the per-conversation context. The zero value is not usable;
// construct with New.
type State struct {
	history      []Turn
	location     *places.Location
	placesNearby []places.Candidate
}

// New returns an empty State: no history, no location, no cached places.
func New() *State {
	return &State{}
}

// AppendTurn records a conversation turn.
func (s *State) AppendTurn(role Role, text string) {
	s.history = append(s.history, Turn{Role: role, Text: text})
}

// Recent returns the most recent n turns, oldest first. The returned slice
// is a copy — mutating it does not affect the session.
func (s *State) Recent(n int) []Turn {
	if n <= 0 || len(s.history) == 0 {
		return nil
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// SetLocation stores loc if it is valid and reports whether it was stored.
// An invalid location is treated as absent — the previous value (if any)
// is left untouched and no error is raised.
func (s *State) SetLocation(loc places.Location) bool {
	if !loc.Valid() {
		return false
	}
	s.location = &loc
	return true
}

// Location returns the stored location, or nil when absent.
// The returned pointer is a copy; callers cannot mutate session state.
func (s *State) Location() *places.Location {
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// HasLocation reports whether a valid location has been stored.
func (s *State) HasLocation() bool {
	return s.location != nil
}

// SetPlacesNearby replaces the cached candidate list wholesale with the
// snapshot from one fetch. Partial or merged snapshots must never be stored.
func (s *State) SetPlacesNearby(candidates []places.Candidate) {
	s.placesNearby = candidates
}

// ClearPlaces invalidates the cached candidate list. The cache is only ever
// cleared here or replaced by SetPlacesNearby — never pruned implicitly.
func (s *State) ClearPlaces() {
	s.placesNearby = nil
}

// PlacesNearby returns the cached candidate snapshot. May be empty.
func (s *State) PlacesNearby() []places.Candidate {
	return s.placesNearby
}

// HasPlaces reports whether a non-empty candidate snapshot is cached.
func (s *State) HasPlaces() bool {
	return len(s.placesNearby) > 0
}
