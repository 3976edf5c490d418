package orchestrator

import (
	"github.com/luzgui1/localwhisper/internal/ranking"
	"github.com/luzgui1/localwhisper/internal/router"
)

// DirectiveKind identifies the terminal outcome of a turn.
type DirectiveKind string

const (
	// DirectiveNeedLocation asks the caller to obtain the user's location
	// before the request can proceed. No fetch or scoring has happened.
	DirectiveNeedLocation DirectiveKind = "need_location"
	// DirectiveSmalltalk carries a conversational reply to return verbatim.
	DirectiveSmalltalk DirectiveKind = "smalltalk"
	// DirectiveRecommendation carries the ranked shortlist for response
	// composition. Top and Other may both be empty when nothing was found
	// nearby — that is a valid outcome, distinct from a capability failure.
	DirectiveRecommendation DirectiveKind = "recommendation"
)

// Directive is the orchestrator's output for one turn, consumed by the
// response-composition layer. Exactly one shape is populated per Kind.
type Directive struct {
	// Kind identifies which branch terminated the turn.
	Kind DirectiveKind
	// Text is the smalltalk reply (DirectiveSmalltalk only).
	Text string
	// Top is the curated shortlist, best first (DirectiveRecommendation only).
	Top []ranking.ScoredCandidate
	// Other holds the next-ranked alternatives after Top
	// (DirectiveRecommendation only).
	Other []ranking.ScoredCandidate
	// Decision is the routing decision that drove the branch, kept for
	// observability and for downstream composition (PLACE_DETAILS and
	// RECOMMENDATION share this orchestration but compose differently).
	Decision router.Decision
	// Fetched reports whether this turn issued a fresh candidate fetch
	// (as opposed to reusing the session cache).
	Fetched bool
}
