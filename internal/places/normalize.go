package places

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	// maxCandidates bounds the number of raw records projected into
	// Candidates per fetch, which in turn bounds embedding cost downstream.
	maxCandidates = 25

	// maxReviewSnippets caps the review snippets kept per candidate.
	maxReviewSnippets = 2
)

// Normalize projects raw provider records into the Candidate shape.
// Missing or malformed fields become the field's absent sentinel (nil),
// never an error. The input list is truncated to maxCandidates and review
// snippets to maxReviewSnippets per candidate.
func Normalize(raw []RawPlace) []Candidate {
	if len(raw) > maxCandidates {
		raw = raw[:maxCandidates]
	}

	out := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		reviews := r.Reviews
		if len(reviews) > maxReviewSnippets {
			reviews = reviews[:maxReviewSnippets]
		}
		// Copy so the Candidate never aliases provider-owned slices.
		var snippets []string
		for _, s := range reviews {
			if s != "" {
				snippets = append(snippets, s)
			}
		}

		out = append(out, Candidate{
			Name:         r.Name,
			Rating:       floatField(r.Rating),
			RatingsTotal: intField(r.RatingsTotal),
			Price:        intField(r.Price),
			OpenNow:      boolField(r.OpenNow),
			Address:      r.Address,
			Website:      r.Website,
			Reviews:      snippets,
		})
	}
	return out
}

// floatField coerces a loosely-typed provider value to *float64.
// Anything that is not a number or a numeric string yields nil.
func floatField(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case float32:
		f := float64(x)
		return &f
	case int:
		f := float64(x)
		return &f
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return &f
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

// intField coerces a loosely-typed provider value to *int. Floats with a
// fractional part are truncated — providers send counts as JSON numbers,
// which decode as float64.
func intField(v any) *int {
	f := floatField(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// boolField coerces a loosely-typed provider value to *bool.
func boolField(v any) *bool {
	switch x := v.(type) {
	case bool:
		return &x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			b := true
			return &b
		case "false":
			b := false
			return &b
		}
	}
	return nil
}
