package ranking

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/luzgui1/localwhisper/internal/places"
)

// fakeEmbedder implements Embedder with a fixed vector per exact input text.
// Unknown texts get a deterministic fallback vector so batch sizes always match.
type fakeEmbedder struct {
	// vectors maps input text to its embedding.
	vectors map[string][]float32
	// fallback is returned for texts not present in vectors.
	fallback []float32
	// err, when set, is returned on every call.
	err error
	// calls counts Embed invocations.
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, f.fallback)
	}
	return out, nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestEngine(t *testing.T, emb Embedder) *Engine {
	t.Helper()
	e, err := NewEngine(&Config{Embedder: emb})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestPriceScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		price *int
		want  float64
	}{
		{"absent is neutral", nil, 0.5},
		{"free", intPtr(0), 1.0},
		{"cheap", intPtr(1), 0.75},
		{"mid", intPtr(2), 0.5},
		{"pricey", intPtr(3), 0.25},
		{"top", intPtr(4), 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := priceScore(tc.price)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("priceScore(%v) = %v, want %v", tc.price, got, tc.want)
			}
		})
	}
}

func TestRatingScoreAbsentRatingIsZero(t *testing.T) {
	t.Parallel()

	if got := ratingScore(nil, intPtr(500)); got != 0 {
		t.Errorf("ratingScore(nil, 500) = %v, want 0", got)
	}
}

func TestRatingScoreZeroReviewsIsZero(t *testing.T) {
	t.Parallel()

	if got := ratingScore(floatPtr(5.0), nil); got != 0 {
		t.Errorf("ratingScore(5.0, nil) = %v, want 0", got)
	}
	if got := ratingScore(floatPtr(5.0), intPtr(0)); got != 0 {
		t.Errorf("ratingScore(5.0, 0) = %v, want 0", got)
	}
}

func TestRatingScoreConfidenceBeatsRawRating(t *testing.T) {
	t.Parallel()

	// A well-reviewed 4.6 must outrank a 5.0 backed by 2 reviews.
	popular := ratingScore(floatPtr(4.6), intPtr(5000))
	fresh := ratingScore(floatPtr(5.0), intPtr(2))

	if popular <= fresh {
		t.Errorf("ratingScore(4.6, 5000) = %v, want > ratingScore(5.0, 2) = %v", popular, fresh)
	}
}

func TestRatingScoreMonotonicInReviewCount(t *testing.T) {
	t.Parallel()

	prev := -1.0
	for _, n := range []int{1, 10, 100, 1000, 10000} {
		got := ratingScore(floatPtr(4.0), intPtr(n))
		if got <= prev {
			t.Errorf("ratingScore(4.0, %d) = %v, want > %v", n, got, prev)
		}
		if got < 0 || got > 1 {
			t.Errorf("ratingScore(4.0, %d) = %v, want in [0, 1]", n, got)
		}
		prev = got
	}
}

func TestScoreEmptyCandidates(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	e := newTestEngine(t, emb)

	got, err := e.Score(context.Background(), "cozy pub", nil)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Score() = %v, want empty non-nil slice", got)
	}
	if emb.calls != 0 {
		t.Errorf("Embed calls = %d, want 0 for empty input", emb.calls)
	}
}

func TestScoreOrdersBySimilarity(t *testing.T) {
	t.Parallel()

	near := places.Candidate{Name: "The Snug"}
	far := places.Candidate{Name: "Mega Club"}

	emb := &fakeEmbedder{
		vectors: map[string][]float32{
			"cozy pub":          {1, 0},
			candidateText(near): {0.9, 0.1},
			candidateText(far):  {0, 1},
		},
		fallback: []float32{0, 0},
	}
	e := newTestEngine(t, emb)

	got, err := e.Score(context.Background(), "cozy pub", []places.Candidate{far, near})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Score() returned %d results, want 2", len(got))
	}
	if got[0].Name != "The Snug" {
		t.Errorf("Score() best = %q, want %q", got[0].Name, "The Snug")
	}
	if emb.calls != 1 {
		t.Errorf("Embed calls = %d, want 1 (single batch)", emb.calls)
	}
}

func TestScoreFinalScoreBounds(t *testing.T) {
	t.Parallel()

	// Opposite vectors give cosine -1; identical give +1. Final scores must
	// stay inside [0, 1] at both extremes.
	best := places.Candidate{Name: "Identical", Rating: floatPtr(5), RatingsTotal: intPtr(10000), Price: intPtr(0)}
	worst := places.Candidate{Name: "Opposite"}

	emb := &fakeEmbedder{
		vectors: map[string][]float32{
			"query":              {1, 0},
			candidateText(best):  {1, 0},
			candidateText(worst): {-1, 0},
		},
		fallback: []float32{0, 0},
	}
	e := newTestEngine(t, emb)

	got, err := e.Score(context.Background(), "query", []places.Candidate{best, worst})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	for _, s := range got {
		if s.FinalScore < 0 || s.FinalScore > 1 {
			t.Errorf("FinalScore for %q = %v, want in [0, 1]", s.Name, s.FinalScore)
		}
		if s.SemanticScore01 < 0 || s.SemanticScore01 > 1 {
			t.Errorf("SemanticScore01 for %q = %v, want in [0, 1]", s.Name, s.SemanticScore01)
		}
	}
	if got[0].Name != "Identical" {
		t.Errorf("best = %q, want Identical", got[0].Name)
	}
	if math.Abs(got[0].SemanticScore-1) > 1e-6 {
		t.Errorf("SemanticScore = %v, want 1", got[0].SemanticScore)
	}
	if math.Abs(got[1].SemanticScore-(-1)) > 1e-6 {
		t.Errorf("SemanticScore = %v, want -1", got[1].SemanticScore)
	}
}

func TestScoreStableOnTies(t *testing.T) {
	t.Parallel()

	// Identical candidates (same vectors, same signals) must keep input order.
	var candidates []places.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, places.Candidate{Name: fmt.Sprintf("Place %d", i)})
	}

	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	e := newTestEngine(t, emb)

	got, err := e.Score(context.Background(), "anything", candidates)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	for i, s := range got {
		want := fmt.Sprintf("Place %d", i)
		if s.Name != want {
			t.Errorf("position %d = %q, want %q (stable tie order)", i, s.Name, want)
		}
	}
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []places.Candidate{
		{Name: "B"},
		{Name: "A"},
	}
	emb := &fakeEmbedder{
		vectors: map[string][]float32{
			"q":                  {1, 0},
			candidateText(in[1]): {1, 0},
		},
		fallback: []float32{0, 1},
	}
	e := newTestEngine(t, emb)

	if _, err := e.Score(context.Background(), "q", in); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if in[0].Name != "B" || in[1].Name != "A" {
		t.Errorf("input slice mutated: %v", in)
	}
}

func TestScoreEmbedFailure(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: fmt.Errorf("backend down")}
	e := newTestEngine(t, emb)

	_, err := e.Score(context.Background(), "q", []places.Candidate{{Name: "X"}})
	if err == nil {
		t.Fatal("Score() expected error, got nil")
	}
}

func TestScoreUnnormalizedVectors(t *testing.T) {
	t.Parallel()

	// Scaled copies of the same direction must still give cosine 1.
	c := places.Candidate{Name: "Scaled"}
	emb := &fakeEmbedder{
		vectors: map[string][]float32{
			"q":              {2, 0},
			candidateText(c): {500, 0},
		},
		fallback: []float32{0, 0},
	}
	e := newTestEngine(t, emb)

	got, err := e.Score(context.Background(), "q", []places.Candidate{c})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if math.Abs(got[0].SemanticScore-1) > 1e-6 {
		t.Errorf("SemanticScore = %v, want 1 for parallel vectors", got[0].SemanticScore)
	}
}

func TestNewEngineRequiresEmbedder(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine(&Config{}); err == nil {
		t.Fatal("NewEngine() expected error for nil embedder")
	}
}
