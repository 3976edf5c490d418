package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/luzgui1/localwhisper/internal/places"
	"github.com/luzgui1/localwhisper/internal/ranking"
	"github.com/luzgui1/localwhisper/internal/router"
	"github.com/luzgui1/localwhisper/internal/session"
)

type fakeClassifier struct {
	decision router.Decision
	outcome  router.ParseOutcome
	err      error
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, _ []session.Turn, _, _ bool) (router.Decision, router.ParseOutcome, error) {
	f.calls++
	return f.decision, f.outcome, f.err
}

type fakeFetcher struct {
	raw   []places.RawPlace
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ places.Location, _ []string, _, _ int) ([]places.RawPlace, error) {
	f.calls++
	return f.raw, f.err
}

type fakeScorer struct {
	err   error
	calls int
	// seen records the candidates passed to the last Score call.
	seen []places.Candidate
}

// Score returns the candidates in input order with descending scores, which
// lets tests control the ranking through candidate order alone.
func (f *fakeScorer) Score(_ context.Context, _ string, candidates []places.Candidate) ([]ranking.ScoredCandidate, error) {
	f.calls++
	f.seen = candidates
	if f.err != nil {
		return nil, f.err
	}
	scored := make([]ranking.ScoredCandidate, 0, len(candidates))
	for i, c := range candidates {
		scored = append(scored, ranking.ScoredCandidate{
			Candidate:  c,
			FinalScore: 1.0 - float64(i)*0.01,
		})
	}
	return scored, nil
}

type fakeTalker struct {
	reply string
	err   error
	calls int
}

func (f *fakeTalker) Smalltalk(_ context.Context, _ string, _ []session.Turn) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fixture struct {
	classifier *fakeClassifier
	fetcher    *fakeFetcher
	scorer     *fakeScorer
	talker     *fakeTalker
	orch       *Orchestrator
}

func newFixture(t *testing.T, decision router.Decision) *fixture {
	t.Helper()
	f := &fixture{
		classifier: &fakeClassifier{decision: decision},
		fetcher:    &fakeFetcher{},
		scorer:     &fakeScorer{},
		talker:     &fakeTalker{reply: "hi there"},
	}
	orch, err := New(&Config{
		Router:  f.classifier,
		Fetcher: f.fetcher,
		Scorer:  f.scorer,
		Talker:  f.talker,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.orch = orch
	return f
}

func rawPlaces(names ...string) []places.RawPlace {
	raw := make([]places.RawPlace, 0, len(names))
	for _, n := range names {
		raw = append(raw, places.RawPlace{Name: n, ID: "id-" + n})
	}
	return raw
}

func locatedState(t *testing.T) *session.State {
	t.Helper()
	state := session.New()
	if !state.SetLocation(places.Location{Lat: 51.5, Lng: -0.12}) {
		t.Fatal("SetLocation rejected a valid location")
	}
	return state
}

func TestNewRequiresAllDependencies(t *testing.T) {
	t.Parallel()

	base := Config{
		Router:  &fakeClassifier{},
		Fetcher: &fakeFetcher{},
		Scorer:  &fakeScorer{},
		Talker:  &fakeTalker{},
	}
	mutations := map[string]func(*Config){
		"router":  func(c *Config) { c.Router = nil },
		"fetcher": func(c *Config) { c.Fetcher = nil },
		"scorer":  func(c *Config) { c.Scorer = nil },
		"talker":  func(c *Config) { c.Talker = nil },
	}
	for name, mutate := range mutations {
		cfg := base
		mutate(&cfg)
		if _, err := New(&cfg); err == nil {
			t.Errorf("New() with nil %s: expected error", name)
		}
	}
}

func TestHandleTurnSmalltalk(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{Intent: router.IntentSmalltalk})
	state := session.New()

	d, err := f.orch.HandleTurn(context.Background(), "hello!", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if d.Kind != DirectiveSmalltalk {
		t.Fatalf("Kind = %q, want %q", d.Kind, DirectiveSmalltalk)
	}
	if d.Text != "hi there" {
		t.Errorf("Text = %q, want talker reply", d.Text)
	}
	if f.fetcher.calls != 0 || f.scorer.calls != 0 {
		t.Errorf("smalltalk touched fetch/score: fetches=%d scores=%d", f.fetcher.calls, f.scorer.calls)
	}
	if state.HasLocation() || state.HasPlaces() {
		t.Error("smalltalk must not mutate location or place cache")
	}

	// Both the user turn and the assistant reply land in history.
	turns := state.Recent(4)
	if len(turns) != 2 {
		t.Fatalf("history = %d turns, want 2", len(turns))
	}
	if turns[0].Role != session.RoleUser || turns[0].Text != "hello!" {
		t.Errorf("turn 0 = %+v, want user turn", turns[0])
	}
	if turns[1].Role != session.RoleAssistant || turns[1].Text != "hi there" {
		t.Errorf("turn 1 = %+v, want assistant reply", turns[1])
	}
}

func TestHandleTurnNotClearGoesToTalker(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{Intent: router.IntentNotClear})
	d, err := f.orch.HandleTurn(context.Background(), "asdfgh", session.New())
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if d.Kind != DirectiveSmalltalk {
		t.Errorf("Kind = %q, want %q", d.Kind, DirectiveSmalltalk)
	}
	if f.talker.calls != 1 {
		t.Errorf("talker calls = %d, want 1", f.talker.calls)
	}
}

func TestHandleTurnLocationGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{Intent: router.IntentRecommendation, HasLocation: true})
	state := session.New()

	d, err := f.orch.HandleTurn(context.Background(), "find me a bar", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if d.Kind != DirectiveNeedLocation {
		t.Fatalf("Kind = %q, want %q", d.Kind, DirectiveNeedLocation)
	}
	if f.fetcher.calls != 0 || f.scorer.calls != 0 || f.talker.calls != 0 {
		t.Error("location gate must terminate before any capability call")
	}

	// The user turn is recorded even on a bounced turn.
	turns := state.Recent(4)
	if len(turns) != 1 || turns[0].Role != session.RoleUser {
		t.Errorf("history = %+v, want just the user turn", turns)
	}
}

func TestHandleTurnFreshFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{Intent: router.IntentRecommendation, HasLocation: true})
	f.fetcher.raw = rawPlaces("Alpha", "Beta", "Gamma")
	state := locatedState(t)

	d, err := f.orch.HandleTurn(context.Background(), "somewhere to eat", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if d.Kind != DirectiveRecommendation {
		t.Fatalf("Kind = %q, want %q", d.Kind, DirectiveRecommendation)
	}
	if !d.Fetched {
		t.Error("Fetched = false, want true for a fresh fetch")
	}
	if f.fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.fetcher.calls)
	}
	if len(d.Top) != 3 || len(d.Other) != 0 {
		t.Errorf("shortlist = %d top / %d other, want 3/0", len(d.Top), len(d.Other))
	}
	if !state.HasPlaces() {
		t.Error("fresh fetch must populate the session cache")
	}
	if got := state.PlacesNearby(); len(got) != 3 {
		t.Errorf("cached candidates = %d, want 3", len(got))
	}
}

func TestHandleTurnCachedFollowUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{
		Intent: router.IntentRecommendation, HasLocation: true, HasPlaces: true,
	})
	state := locatedState(t)
	state.SetPlacesNearby([]places.Candidate{{Name: "Cached One"}, {Name: "Cached Two"}})

	d, err := f.orch.HandleTurn(context.Background(), "which is quieter?", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if f.fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0 on a cache hit", f.fetcher.calls)
	}
	if d.Fetched {
		t.Error("Fetched = true, want false on a cache hit")
	}
	if len(f.scorer.seen) != 2 || f.scorer.seen[0].Name != "Cached One" {
		t.Errorf("scorer saw %+v, want cached candidates", f.scorer.seen)
	}
}

func TestHandleTurnInconsistentCacheFlagFallsBackToFetch(t *testing.T) {
	t.Parallel()

	// Router claims has_places but the session cache is empty: the machine
	// fetches fresh rather than ranking nothing.
	f := newFixture(t, router.Decision{
		Intent: router.IntentRecommendation, HasLocation: true, HasPlaces: true,
	})
	f.fetcher.raw = rawPlaces("Fresh")
	state := locatedState(t)

	d, err := f.orch.HandleTurn(context.Background(), "more options", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if f.fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 when the cache is empty", f.fetcher.calls)
	}
	if !d.Fetched {
		t.Error("Fetched = false, want true")
	}
}

func TestHandleTurnPlaceDetailsSharesRecommendBranch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{
		Intent: router.IntentPlaceDetails, HasLocation: true, HasPlaces: true,
	})
	state := locatedState(t)
	state.SetPlacesNearby([]places.Candidate{{Name: "The Anchor"}})

	d, err := f.orch.HandleTurn(context.Background(), "is the anchor open late?", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if d.Kind != DirectiveRecommendation {
		t.Errorf("Kind = %q, want %q", d.Kind, DirectiveRecommendation)
	}
	if d.Decision.Intent != router.IntentPlaceDetails {
		t.Errorf("Decision.Intent = %q, want PLACE_DETAILS preserved", d.Decision.Intent)
	}
	if f.fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", f.fetcher.calls)
	}
}

func TestHandleTurnEmptyFetchIsNotAnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{Intent: router.IntentRecommendation, HasLocation: true})
	state := locatedState(t)

	d, err := f.orch.HandleTurn(context.Background(), "anything nearby?", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, want nil for an empty area", err)
	}
	if d.Kind != DirectiveRecommendation {
		t.Fatalf("Kind = %q, want %q", d.Kind, DirectiveRecommendation)
	}
	if d.Top == nil || d.Other == nil {
		t.Error("Top/Other must be empty slices, not nil")
	}
	if len(d.Top) != 0 || len(d.Other) != 0 {
		t.Errorf("shortlist = %d/%d, want empty", len(d.Top), len(d.Other))
	}
}

func TestHandleTurnShortlistSplit(t *testing.T) {
	t.Parallel()

	names := make([]string, 12)
	for i := range names {
		names[i] = fmt.Sprintf("Place %d", i)
	}
	f := newFixture(t, router.Decision{Intent: router.IntentRecommendation, HasLocation: true})
	f.fetcher.raw = rawPlaces(names...)
	state := locatedState(t)

	d, err := f.orch.HandleTurn(context.Background(), "options please", state)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if len(d.Top) != DefaultTopCount {
		t.Errorf("len(Top) = %d, want %d", len(d.Top), DefaultTopCount)
	}
	if len(d.Other) != DefaultOtherCount {
		t.Errorf("len(Other) = %d, want %d", len(d.Other), DefaultOtherCount)
	}
	if d.Top[0].Name != "Place 0" || d.Other[0].Name != fmt.Sprintf("Place %d", DefaultTopCount) {
		t.Errorf("split boundaries wrong: top[0]=%q other[0]=%q", d.Top[0].Name, d.Other[0].Name)
	}
}

func TestHandleTurnCapabilityErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	cases := []struct {
		name       string
		configure  func(*fixture)
		capability string
	}{
		{
			name:       "router failure",
			configure:  func(f *fixture) { f.classifier.err = cause },
			capability: CapabilityLanguageModel,
		},
		{
			name: "fetch failure",
			configure: func(f *fixture) {
				f.classifier.decision = router.Decision{Intent: router.IntentRecommendation, HasLocation: true}
				f.fetcher.err = cause
			},
			capability: CapabilityPlaceFetch,
		},
		{
			name: "scoring failure",
			configure: func(f *fixture) {
				f.classifier.decision = router.Decision{Intent: router.IntentRecommendation, HasLocation: true}
				f.fetcher.raw = rawPlaces("Alpha")
				f.scorer.err = cause
			},
			capability: CapabilityEmbedding,
		},
		{
			name: "smalltalk failure",
			configure: func(f *fixture) {
				f.classifier.decision = router.Decision{Intent: router.IntentSmalltalk}
				f.talker.err = cause
			},
			capability: CapabilitySmalltalk,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, router.Decision{Intent: router.IntentSmalltalk})
			tc.configure(f)

			_, err := f.orch.HandleTurn(context.Background(), "hi", locatedState(t))
			if err == nil {
				t.Fatal("HandleTurn() expected an error")
			}
			ce := AsCapabilityError(err)
			if ce == nil {
				t.Fatalf("error %v is not a CapabilityError", err)
			}
			if ce.Capability != tc.capability {
				t.Errorf("Capability = %q, want %q", ce.Capability, tc.capability)
			}
			if !errors.Is(err, cause) {
				t.Errorf("error chain %v does not wrap the cause", err)
			}
		})
	}
}

func TestHandleTurnFailedFetchDoesNotReuseStaleCache(t *testing.T) {
	t.Parallel()

	// has_places=false forces a fetch even though the cache has data; a
	// failed fetch must surface, never silently rank the stale snapshot.
	f := newFixture(t, router.Decision{Intent: router.IntentRecommendation, HasLocation: true})
	f.fetcher.err = errors.New("quota exhausted")
	state := locatedState(t)
	state.SetPlacesNearby([]places.Candidate{{Name: "Stale"}})

	_, err := f.orch.HandleTurn(context.Background(), "new area, what's here?", state)
	ce := AsCapabilityError(err)
	if ce == nil || ce.Capability != CapabilityPlaceFetch {
		t.Fatalf("error = %v, want place-fetch capability error", err)
	}
	if f.scorer.calls != 0 {
		t.Error("scorer must not run after a failed fetch")
	}
}

func TestRecordReplyAppendsAssistantTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, router.Decision{Intent: router.IntentSmalltalk})
	state := session.New()
	state.AppendTurn(session.RoleUser, "find me a pub")

	f.orch.RecordReply(state, "Here are some options.")

	turns := state.Recent(4)
	if len(turns) != 2 {
		t.Fatalf("history = %d turns, want 2", len(turns))
	}
	last := turns[len(turns)-1]
	if last.Role != session.RoleAssistant || last.Text != "Here are some options." {
		t.Errorf("last turn = %+v, want the recorded reply", last)
	}
}

func TestSplitShortlistBounds(t *testing.T) {
	t.Parallel()

	mk := func(n int) []ranking.ScoredCandidate {
		s := make([]ranking.ScoredCandidate, n)
		return s
	}

	cases := []struct {
		name             string
		in               []ranking.ScoredCandidate
		topN, otherN     int
		wantTop, wantOth int
	}{
		{"empty", nil, 5, 3, 0, 0},
		{"fewer than top", mk(3), 5, 3, 3, 0},
		{"exactly top", mk(5), 5, 3, 5, 0},
		{"partial other", mk(7), 5, 3, 5, 2},
		{"full split", mk(8), 5, 3, 5, 3},
		{"overflow", mk(20), 5, 3, 5, 3},
	}
	for _, tc := range cases {
		top, other := splitShortlist(tc.in, tc.topN, tc.otherN)
		if len(top) != tc.wantTop || len(other) != tc.wantOth {
			t.Errorf("%s: split = %d/%d, want %d/%d", tc.name, len(top), len(other), tc.wantTop, tc.wantOth)
		}
	}
}
