// Package orchestrator implements the per-turn state machine at the heart
// of the assistant. Each turn it classifies the user's intent, gates on
// location, decides between fetching fresh venue candidates or reusing the
// session cache, runs the ranking engine, and returns a directive telling
// the response-composition layer what to do. The machine runs to completion
// synchronously; the only state that survives a turn lives in the
// session.State passed in by the caller, and the orchestrator is the sole
// writer of that state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luzgui1/localwhisper/internal/logging"
	"github.com/luzgui1/localwhisper/internal/places"
	"github.com/luzgui1/localwhisper/internal/ranking"
	"github.com/luzgui1/localwhisper/internal/router"
	"github.com/luzgui1/localwhisper/internal/session"
)

// Defaults for the fetch and shortlist parameters. These mirror the product
// behavior: a tight urban radius, a bounded raw result set, a shortlist of
// five with three runners-up.
const (
	// DefaultRadiusMeters is the search radius around the user's location.
	DefaultRadiusMeters = 250
	// DefaultMaxResults caps the raw results requested per fetch.
	DefaultMaxResults = 20
	// DefaultTopCount is the size of the curated shortlist.
	DefaultTopCount = 5
	// DefaultOtherCount is the number of runner-up options after the shortlist.
	DefaultOtherCount = 3
	// DefaultHistoryWindow is the number of prior turns shown to the router.
	DefaultHistoryWindow = 4
)

// defaultSearchTerms is the fixed venue-category set used for every fetch.
var defaultSearchTerms = []string{"bar", "pub", "restaurant", "cafe"}

// Classifier is the intent-routing capability. *router.Router satisfies it;
// tests inject fakes.
type Classifier interface {
	// Classify routes one user turn given the recent history and session flags.
	Classify(ctx context.Context, userText string, recent []session.Turn, hasLocation, hasPlaces bool) (router.Decision, router.ParseOutcome, error)
}

// Scorer is the ranking capability. *ranking.Engine satisfies it.
type Scorer interface {
	// Score ranks candidates against the query, best first.
	Score(ctx context.Context, query string, candidates []places.Candidate) ([]ranking.ScoredCandidate, error)
}

// Talker is the smalltalk response capability, external to the core.
type Talker interface {
	// Smalltalk produces a conversational reply for a non-recommendation turn.
	Smalltalk(ctx context.Context, userText string, recent []session.Turn) (string, error)
}

// Config holds the orchestrator dependencies and tunables.
type Config struct {
	// Router is the intent classifier. Required.
	Router Classifier
	// Fetcher is the place-search capability. Required.
	Fetcher places.Fetcher
	// Scorer is the ranking engine. Required.
	Scorer Scorer
	// Talker is the smalltalk capability. Required.
	Talker Talker

	// SearchTerms overrides the fixed venue-category set when non-empty.
	SearchTerms []string
	// RadiusMeters overrides DefaultRadiusMeters when > 0.
	RadiusMeters int
	// MaxResults overrides DefaultMaxResults when > 0.
	MaxResults int
	// TopCount overrides DefaultTopCount when > 0.
	TopCount int
	// OtherCount overrides DefaultOtherCount when > 0.
	OtherCount int
	// HistoryWindow overrides DefaultHistoryWindow when > 0.
	HistoryWindow int
}

// Orchestrator runs the per-turn state machine. Construct with New.
// A single Orchestrator serves any number of independent sessions; all
// per-conversation state lives in the session.State the caller passes in.
type Orchestrator struct {
	router  Classifier
	fetcher places.Fetcher
	scorer  Scorer
	talker  Talker

	searchTerms   []string
	radiusMeters  int
	maxResults    int
	topCount      int
	otherCount    int
	historyWindow int
}

// New constructs an Orchestrator from the provided Config.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("orchestrator: Router must not be nil")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("orchestrator: Fetcher must not be nil")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("orchestrator: Scorer must not be nil")
	}
	if cfg.Talker == nil {
		return nil, fmt.Errorf("orchestrator: Talker must not be nil")
	}

	o := &Orchestrator{
		router:        cfg.Router,
		fetcher:       cfg.Fetcher,
		scorer:        cfg.Scorer,
		talker:        cfg.Talker,
		searchTerms:   defaultSearchTerms,
		radiusMeters:  DefaultRadiusMeters,
		maxResults:    DefaultMaxResults,
		topCount:      DefaultTopCount,
		otherCount:    DefaultOtherCount,
		historyWindow: DefaultHistoryWindow,
	}
	if len(cfg.SearchTerms) > 0 {
		o.searchTerms = cfg.SearchTerms
	}
	if cfg.RadiusMeters > 0 {
		o.radiusMeters = cfg.RadiusMeters
	}
	if cfg.MaxResults > 0 {
		o.maxResults = cfg.MaxResults
	}
	if cfg.TopCount > 0 {
		o.topCount = cfg.TopCount
	}
	if cfg.OtherCount > 0 {
		o.otherCount = cfg.OtherCount
	}
	if cfg.HistoryWindow > 0 {
		o.historyWindow = cfg.HistoryWindow
	}
	return o, nil
}

// HandleTurn runs one turn of the state machine to completion and returns
// the resulting directive. The branches are evaluated in a fixed order:
//
//  1. classify the turn
//  2. location gate — any turn flagged as needing a location terminates
//     with DirectiveNeedLocation when the session has none
//  3. SMALLTALK / NOT_CLEAR terminate via the Talker
//  4. RECOMMENDATION and PLACE_DETAILS share the fetch/rank/cache logic:
//     fetch fresh candidates when none are cached, otherwise rank the
//     cached snapshot without refetching
//
// Location is checked before the intent branches so that no fetch or
// scoring work is wasted on a turn that must bounce anyway. The only error
// returned is a *CapabilityError; every other condition maps to a directive.
func (o *Orchestrator) HandleTurn(ctx context.Context, userText string, state *session.State) (*Directive, error) {
	log := logging.FromContext(ctx)

	recent := state.Recent(o.historyWindow)
	decision, outcome, err := o.router.Classify(ctx, userText, recent, state.HasLocation(), state.HasPlaces())
	if err != nil {
		return nil, &CapabilityError{Capability: CapabilityLanguageModel, Err: err}
	}
	log.Debug("turn routed",
		slog.String("intent", string(decision.Intent)),
		slog.Bool("has_location", decision.HasLocation),
		slog.Bool("has_places", decision.HasPlaces),
		slog.String("parse_outcome", outcome.String()),
	)

	// The user turn enters the history after classification: the router's
	// contract takes the current text and the prior turns separately.
	state.AppendTurn(session.RoleUser, userText)

	// Location gate. A location the router wants but the session lacks ends
	// the turn before any fetch or scoring work.
	if decision.HasLocation && !state.HasLocation() {
		return &Directive{Kind: DirectiveNeedLocation, Decision: decision}, nil
	}

	switch decision.Intent {
	case router.IntentSmalltalk, router.IntentNotClear:
		text, err := o.talker.Smalltalk(ctx, userText, recent)
		if err != nil {
			return nil, &CapabilityError{Capability: CapabilitySmalltalk, Err: err}
		}
		state.AppendTurn(session.RoleAssistant, text)
		return &Directive{Kind: DirectiveSmalltalk, Text: text, Decision: decision}, nil

	case router.IntentRecommendation, router.IntentPlaceDetails:
		return o.recommend(ctx, userText, decision, state)

	default:
		// Unreachable with a well-formed router, but the machine must not
		// crash on an inconsistent decision.
		log.Warn("turn fell through intent branches", slog.String("intent", string(decision.Intent)))
		text, err := o.talker.Smalltalk(ctx, userText, recent)
		if err != nil {
			return nil, &CapabilityError{Capability: CapabilitySmalltalk, Err: err}
		}
		state.AppendTurn(session.RoleAssistant, text)
		return &Directive{Kind: DirectiveSmalltalk, Text: text, Decision: decision}, nil
	}
}

// recommend runs the shared fetch/rank/cache branch for RECOMMENDATION and
// PLACE_DETAILS turns. The two intents differ only in downstream response
// composition, never in orchestration.
func (o *Orchestrator) recommend(ctx context.Context, userText string, decision router.Decision, state *session.State) (*Directive, error) {
	log := logging.FromContext(ctx)

	// Defensive re-check: the gate in HandleTurn already bounced missing
	// locations, but an inconsistent router (has_location=false on a
	// recommendation) must not crash the machine.
	if !decision.HasLocation || !state.HasLocation() {
		return &Directive{Kind: DirectiveNeedLocation, Decision: decision}, nil
	}

	var candidates []places.Candidate
	fetched := false

	if decision.HasPlaces && state.HasPlaces() {
		// Follow-up about the same neighborhood: rank the cached snapshot,
		// no refetch. Fetches carry latency and quota cost.
		candidates = state.PlacesNearby()
		log.Debug("ranking cached candidates", slog.Int("count", len(candidates)))
	} else {
		loc := state.Location()
		raw, err := o.fetcher.Fetch(ctx, *loc, o.searchTerms, o.radiusMeters, o.maxResults)
		if err != nil {
			// A failed fetch never falls back to stale cached data — cache
			// reuse only happens through the has_places branch above.
			return nil, &CapabilityError{Capability: CapabilityPlaceFetch, Err: err}
		}
		candidates = places.Normalize(raw)
		state.SetPlacesNearby(candidates)
		fetched = true
		log.Debug("fetched candidates", slog.Int("raw", len(raw)), slog.Int("normalized", len(candidates)))
	}

	scored, err := o.scorer.Score(ctx, userText, candidates)
	if err != nil {
		return nil, &CapabilityError{Capability: CapabilityEmbedding, Err: err}
	}

	top, other := splitShortlist(scored, o.topCount, o.otherCount)
	return &Directive{
		Kind:     DirectiveRecommendation,
		Top:      top,
		Other:    other,
		Decision: decision,
		Fetched:  fetched,
	}, nil
}

// RecordReply appends the composed assistant reply to the session history.
// Response composition happens outside the core, but session writes stay
// routed through the orchestrator so it remains the single writer.
func (o *Orchestrator) RecordReply(state *session.State, text string) {
	state.AppendTurn(session.RoleAssistant, text)
}

// splitShortlist cuts the ranked list into the top shortlist and the
// runner-up window. Both may be short or empty; never nil panics.
func splitShortlist(scored []ranking.ScoredCandidate, topN, otherN int) (top, other []ranking.ScoredCandidate) {
	if len(scored) == 0 {
		return []ranking.ScoredCandidate{}, []ranking.ScoredCandidate{}
	}
	if topN > len(scored) {
		topN = len(scored)
	}
	top = scored[:topN]

	rest := scored[topN:]
	if otherN > len(rest) {
		otherN = len(rest)
	}
	other = rest[:otherN]
	return top, other
}
