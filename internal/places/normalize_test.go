package places

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestNormalizeCoercesLooseFields(t *testing.T) {
	t.Parallel()

	raw := []RawPlace{{
		Name:         "The Anchor",
		Rating:       4.5,
		RatingsTotal: float64(1200), // JSON numbers decode as float64
		Price:        "2",
		OpenNow:      "true",
		Address:      "12 Dock St",
		Website:      "https://anchor.example",
		Reviews:      []string{"great pints", "cozy corner"},
	}}

	got := Normalize(raw)
	if len(got) != 1 {
		t.Fatalf("Normalize() returned %d candidates, want 1", len(got))
	}
	c := got[0]
	if c.Rating == nil || *c.Rating != 4.5 {
		t.Errorf("Rating = %v, want 4.5", c.Rating)
	}
	if c.RatingsTotal == nil || *c.RatingsTotal != 1200 {
		t.Errorf("RatingsTotal = %v, want 1200", c.RatingsTotal)
	}
	if c.Price == nil || *c.Price != 2 {
		t.Errorf("Price = %v, want 2", c.Price)
	}
	if c.OpenNow == nil || !*c.OpenNow {
		t.Errorf("OpenNow = %v, want true", c.OpenNow)
	}
	if len(c.Reviews) != 2 {
		t.Errorf("Reviews = %v, want 2 snippets", c.Reviews)
	}
}

func TestNormalizeMalformedFieldsBecomeAbsent(t *testing.T) {
	t.Parallel()

	raw := []RawPlace{{
		Name:         "Mystery Bar",
		Rating:       "not a number",
		RatingsTotal: nil,
		Price:        []string{"weird"},
		OpenNow:      42,
	}}

	got := Normalize(raw)
	c := got[0]
	if c.Rating != nil {
		t.Errorf("Rating = %v, want nil for malformed value", c.Rating)
	}
	if c.RatingsTotal != nil {
		t.Errorf("RatingsTotal = %v, want nil", c.RatingsTotal)
	}
	if c.Price != nil {
		t.Errorf("Price = %v, want nil", c.Price)
	}
	if c.OpenNow != nil {
		t.Errorf("OpenNow = %v, want nil", c.OpenNow)
	}
}

func TestNormalizeZeroIsNotAbsent(t *testing.T) {
	t.Parallel()

	raw := []RawPlace{{
		Name:    "Free House",
		Price:   float64(0),
		OpenNow: false,
	}}

	c := Normalize(raw)[0]
	if c.Price == nil || *c.Price != 0 {
		t.Errorf("Price = %v, want present 0 — zero must not collapse to absent", c.Price)
	}
	if c.OpenNow == nil || *c.OpenNow {
		t.Errorf("OpenNow = %v, want present false", c.OpenNow)
	}
}

func TestNormalizeCapsCandidatesAndReviews(t *testing.T) {
	t.Parallel()

	var raw []RawPlace
	for i := 0; i < maxCandidates+10; i++ {
		raw = append(raw, RawPlace{
			Name:    fmt.Sprintf("Place %d", i),
			Reviews: []string{"a", "b", "c", "d"},
		})
	}

	got := Normalize(raw)
	if len(got) != maxCandidates {
		t.Errorf("Normalize() returned %d candidates, want %d", len(got), maxCandidates)
	}
	for _, c := range got {
		if len(c.Reviews) > maxReviewSnippets {
			t.Errorf("candidate %q kept %d reviews, want <= %d", c.Name, len(c.Reviews), maxReviewSnippets)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	t.Parallel()

	if got := Normalize(nil); len(got) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", got)
	}
}

func TestFloatFieldJSONNumber(t *testing.T) {
	t.Parallel()

	if got := floatField(json.Number("3.8")); got == nil || *got != 3.8 {
		t.Errorf("floatField(json.Number) = %v, want 3.8", got)
	}
}

func TestLocationValid(t *testing.T) {
	t.Parallel()

	if !(Location{Lat: -33.86, Lng: 151.2}).Valid() {
		t.Error("valid coordinates reported invalid")
	}
	if (Location{Lat: 90.1, Lng: 0}).Valid() {
		t.Error("out-of-range latitude reported valid")
	}
	if (Location{Lat: 0, Lng: -180.5}).Valid() {
		t.Error("out-of-range longitude reported valid")
	}
}
