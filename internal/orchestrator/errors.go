package orchestrator

import (
	"errors"
	"fmt"
)

// Capability labels used in CapabilityError. These name the failing external
// dependency so the caller can report which one broke.
const (
	// CapabilityLanguageModel is the intent-routing language model call.
	CapabilityLanguageModel = "language-model"
	// CapabilityPlaceFetch is the place-search provider call.
	CapabilityPlaceFetch = "place-fetch"
	// CapabilityEmbedding is the embedding call inside scoring.
	CapabilityEmbedding = "embedding"
	// CapabilitySmalltalk is the smalltalk response capability.
	CapabilitySmalltalk = "smalltalk"
)

// CapabilityError reports that an external capability failed or timed out.
// It is the only error class HandleTurn returns: every other abnormal
// condition (malformed router output, invalid location, empty candidate
// set) degrades to a specific directive instead. The orchestrator performs
// no retries — retry policy belongs to the capability boundary.
type CapabilityError struct {
	// Capability names the failing dependency (see the Capability* constants).
	Capability string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("orchestrator: capability %q unavailable: %v", e.Capability, e.Err)
}

// Unwrap exposes the underlying failure for errors.Is/As chains.
func (e *CapabilityError) Unwrap() error { return e.Err }

// AsCapabilityError extracts a *CapabilityError from an error chain.
// Returns nil when err does not carry one.
func AsCapabilityError(err error) *CapabilityError {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
