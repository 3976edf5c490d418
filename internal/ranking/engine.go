// Package ranking implements the multi-signal scoring engine that orders
// venue candidates against a free-text query. The final score blends
// semantic similarity (query vs a compact text rendering of the candidate),
// rating weighted by review-count confidence, and price normalization.
// Scoring is a pure function of its inputs — no state is kept between calls
// and the input candidates are never mutated.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/luzgui1/localwhisper/internal/places"
)

// Blend weights for the final score. Exposed in Config so deployments can
// tune them, but the defaults are the contract — tests pin them.
const (
	// DefaultSemanticWeight is the share of the final score driven by
	// query/candidate similarity.
	DefaultSemanticWeight = 0.60
	// DefaultRatingWeight is the share driven by confidence-damped rating.
	DefaultRatingWeight = 0.30
	// DefaultPriceWeight is the share driven by price normalization.
	DefaultPriceWeight = 0.10

	// ratingSaturation is the review count at which rating confidence
	// reaches ~1.0 on the log scale. A handful of reviews barely counts;
	// ten thousand saturates.
	ratingSaturation = 10000
)

// Embedder is the embedding capability consumed by the engine: text in,
// dense vector out. Batch calls return one vector per input, in order.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ScoredCandidate is a Candidate plus the derived ranking signals.
// A fresh value is built per scoring call; the embedded Candidate is a copy.
type ScoredCandidate struct {
	places.Candidate

	// SemanticScore is the raw cosine similarity between the query and the
	// candidate text, in [-1, 1].
	SemanticScore float64 `json:"semantic_score"`
	// SemanticScore01 is SemanticScore rescaled to [0, 1].
	SemanticScore01 float64 `json:"semantic_score_01"`
	// RatingScore is the confidence-damped rating component in [0, 1].
	RatingScore float64 `json:"rating_score"`
	// PriceScore is the price component in [0, 1]; cheaper is better.
	PriceScore float64 `json:"price_score"`
	// FinalScore is the weighted blend of the three components, in [0, 1].
	FinalScore float64 `json:"final_score"`
}

// Config holds the engine dependencies and optional weight overrides.
type Config struct {
	// Embedder is the embedding capability. Required.
	Embedder Embedder
	// SemanticWeight overrides DefaultSemanticWeight when > 0.
	SemanticWeight float64
	// RatingWeight overrides DefaultRatingWeight when > 0.
	RatingWeight float64
	// PriceWeight overrides DefaultPriceWeight when > 0.
	PriceWeight float64
}

// Engine scores candidate lists against queries. Construct with NewEngine.
type Engine struct {
	embedder Embedder
	wSem     float64
	wRating  float64
	wPrice   float64
}

// NewEngine constructs an Engine from the given config.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("ranking: embedder must not be nil")
	}
	e := &Engine{
		embedder: cfg.Embedder,
		wSem:     DefaultSemanticWeight,
		wRating:  DefaultRatingWeight,
		wPrice:   DefaultPriceWeight,
	}
	if cfg.SemanticWeight > 0 {
		e.wSem = cfg.SemanticWeight
	}
	if cfg.RatingWeight > 0 {
		e.wRating = cfg.RatingWeight
	}
	if cfg.PriceWeight > 0 {
		e.wPrice = cfg.PriceWeight
	}
	return e, nil
}

// Score ranks candidates against query, best first. The sort is stable:
// candidates with identical final scores keep their input order, so results
// are reproducible given a deterministic embedder. An empty candidate list
// returns an empty slice and no error.
func (e *Engine) Score(ctx context.Context, query string, candidates []places.Candidate) ([]ScoredCandidate, error) {
	if len(candidates) == 0 {
		return []ScoredCandidate{}, nil
	}

	// One batch call: query first, then every candidate rendering.
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, c := range candidates {
		texts = append(texts, candidateText(c))
	}

	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ranking: embed failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ranking: expected %d embeddings, got %d", len(texts), len(vecs))
	}

	// Normalize so the dot product is exactly cosine similarity even when a
	// backend returns unnormalized vectors.
	queryVec := normalize(vecs[0])

	scored := make([]ScoredCandidate, 0, len(candidates))
	for i, c := range candidates {
		sem := dot(normalize(vecs[i+1]), queryVec)
		sem01 := clamp01((sem + 1) / 2)
		rScore := ratingScore(c.Rating, c.RatingsTotal)
		pScore := priceScore(c.Price)

		scored = append(scored, ScoredCandidate{
			Candidate:       c,
			SemanticScore:   sem,
			SemanticScore01: sem01,
			RatingScore:     rScore,
			PriceScore:      pScore,
			FinalScore:      e.wSem*sem01 + e.wRating*rScore + e.wPrice*pScore,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	return scored, nil
}

// candidateText renders a candidate into the compact text representation
// that gets embedded. Absent fields render as empty, never cause failure.
func candidateText(c places.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Address: %s\n", c.Address)
	fmt.Fprintf(&b, "Rating: %s (total ratings: %s)\n", floatStr(c.Rating), intStr(c.RatingsTotal))
	fmt.Fprintf(&b, "Price level: %s\n", intStr(c.Price))
	fmt.Fprintf(&b, "Reviews: %s", strings.Join(c.Reviews, " "))
	return b.String()
}

// priceScore maps a 0–4 price level to [0, 1], cheaper scoring higher.
// An absent price level is neutral (0.5).
func priceScore(price *int) float64 {
	if price == nil {
		return 0.5
	}
	return clamp01(1 - float64(*price)/4)
}

// ratingScore combines the normalized rating with a log-scaled confidence
// factor derived from the review count: zero reviews give zero confidence,
// ratingSaturation reviews give ~1. This keeps a 5.0 rating from 2 reviews
// below a 4.6 rating from 5000.
func ratingScore(rating *float64, ratingsTotal *int) float64 {
	if rating == nil {
		return 0
	}
	rNorm := clamp01(*rating / 5)

	n := 0.0
	if ratingsTotal != nil && *ratingsTotal > 0 {
		n = float64(*ratingsTotal)
	}
	conf := clamp01(math.Log1p(n) / math.Log1p(ratingSaturation))
	return rNorm * conf
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// dot returns the dot product of two equal-length vectors. Extra trailing
// dimensions in either vector are ignored rather than panicking.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize returns v scaled to unit length. Zero vectors pass through
// unchanged so scoring degrades to zero similarity instead of NaN.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// floatStr renders an optional float, "" when absent.
func floatStr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// intStr renders an optional int, "" when absent.
func intStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
