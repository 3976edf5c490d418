// Package router classifies a user turn into one of a fixed set of intents
// plus two context flags, by instructing a language model to emit a
// constrained JSON decision. Malformed model output is never an error:
// parsing falls back through three tiers — strict JSON, brace-delimited
// extraction, and finally a fixed NOT_CLEAR decision — so the orchestrator
// always receives a usable decision.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/luzgui1/localwhisper/internal/logging"
	"github.com/luzgui1/localwhisper/internal/session"
)

// Intent is the classified purpose of a user turn.
type Intent string

const (
	// IntentSmalltalk is casual chat with no recommendation request.
	IntentSmalltalk Intent = "SMALLTALK"
	// IntentRecommendation is a request for places or options to go out.
	IntentRecommendation Intent = "RECOMMENDATION"
	// IntentPlaceDetails is a follow-up about a specific place already mentioned.
	IntentPlaceDetails Intent = "PLACE_DETAILS"
	// IntentNotClear is an ambiguous or unclassifiable request.
	IntentNotClear Intent = "NOT_CLEAR"
)

// Decision is the structured routing decision for one turn. Immutable once
// produced.
type Decision struct {
	// Intent is the classified purpose of the turn.
	Intent Intent `json:"intent"`
	// HasLocation indicates the turn requires a user location.
	HasLocation bool `json:"has_location"`
	// HasPlaces indicates the cached candidate list should be reused.
	HasPlaces bool `json:"has_places"`
}

// ParseOutcome records which parsing tier produced the decision. It is a
// resilience signal, not an error: a Defaulted outcome is a valid decision
// the orchestrator handles like any other.
type ParseOutcome int

const (
	// ParseOK means the model output parsed as strict JSON.
	ParseOK ParseOutcome = iota
	// ParseExtracted means JSON was recovered from surrounding text.
	ParseExtracted
	// ParseDefaulted means the fixed NOT_CLEAR fallback was substituted.
	ParseDefaulted
)

// String returns the outcome label used in logs.
func (o ParseOutcome) String() string {
	switch o {
	case ParseOK:
		return "ok"
	case ParseExtracted:
		return "extracted"
	default:
		return "defaulted"
	}
}

// systemPrompt instructs the model to act as the intent router and emit
// nothing but the decision JSON.
const systemPrompt = `You are the router for an urban leisure assistant.
Return ONLY valid JSON (no markdown, no extra text).

Schema:
{
  "intent": one of ["SMALLTALK","RECOMMENDATION","PLACE_DETAILS","NOT_CLEAR"],
  "has_location": boolean,
  "has_places": boolean
}

Definitions:
- SMALLTALK: casual chat, no recommendations.
- RECOMMENDATION: the user asks for places, activities, or options to go out.
- PLACE_DETAILS: the user asks details about a specific place previously mentioned.
- NOT_CLEAR: the request is ambiguous or not clear at all.

Rules:
- If intent is RECOMMENDATION or PLACE_DETAILS, set has_location=true.
- If intent is PLACE_DETAILS, set has_places=true.
- If intent is RECOMMENDATION and the conversation context says places are cached, set has_places=true.
- If the user refers to "the first one", "that bar", or a place by name, set intent=PLACE_DETAILS.`

// ChatModel is the narrow language-model capability the router consumes.
// Any eino chat model satisfies it.
type ChatModel interface {
	// Generate produces a single completion for the given messages.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Router classifies user turns. Construct with New.
type Router struct {
	model ChatModel
}

// New constructs a Router backed by the given chat model.
func New(m ChatModel) (*Router, error) {
	if m == nil {
		return nil, fmt.Errorf("router: chat model must not be nil")
	}
	return &Router{model: m}, nil
}

// Classify routes one user turn. recent carries the prior conversation
// turns (the caller limits the window); hasLocation and hasPlaces describe
// the current session so the model can set the flags consistently.
//
// The only error returned is a failed model call — malformed output is
// absorbed into the decision via the parse fallback tiers, and the outcome
// reports which tier fired.
func (r *Router) Classify(ctx context.Context, userText string, recent []session.Turn, hasLocation, hasPlaces bool) (Decision, ParseOutcome, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildContext(userText, recent, hasLocation, hasPlaces)),
	}

	resp, err := r.model.Generate(ctx, msgs)
	if err != nil {
		return Decision{}, ParseDefaulted, fmt.Errorf("router: classify call failed: %w", err)
	}

	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Content)
	}

	decision, outcome := parseDecision(text)
	if outcome != ParseOK {
		logging.FromContext(ctx).Warn("router: decision recovered from malformed output",
			slog.String("outcome", outcome.String()),
			slog.String("raw", text),
		)
	}
	return decision, outcome, nil
}

// buildContext renders the user message plus the session flags and the
// recent history window into the single user message the router model sees.
func buildContext(userText string, recent []session.Turn, hasLocation, hasPlaces bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "message: %s\n", userText)
	fmt.Fprintf(&b, "has-location: %t\n", hasLocation)
	fmt.Fprintf(&b, "has-places: %t\n", hasPlaces)
	if len(recent) > 0 {
		b.WriteString("previous-messages:\n")
		for _, t := range recent {
			fmt.Fprintf(&b, "- %s: %s\n", t.Role, t.Text)
		}
	}
	return b.String()
}
