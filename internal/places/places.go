// Package places defines the venue data model shared by the orchestration
// core: geographic coordinates, the loosely-typed records returned by a
// place-search provider, and the normalized Candidate shape the ranking
// engine consumes. The concrete Google Places client lives in google.go;
// everything else in this package is pure data plumbing with no I/O.
package places

import (
	"context"
	"math"
)

// Location is a WGS84 coordinate pair. A session carries a *Location so
// that absence is represented by nil rather than a zero value.
type Location struct {
	// Lat is the latitude in decimal degrees.
	Lat float64 `json:"lat"`
	// Lng is the longitude in decimal degrees.
	Lng float64 `json:"lng"`
}

// Valid reports whether the location is usable: both coordinates finite and
// within geographic range. An invalid location must be treated as absent by
// callers — never as an error.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Candidate is a normalized venue record. Optional fields use pointer types
// so that "absent" is distinct from a legitimate zero (a free venue has
// Price pointing at 0; a venue with no price data has Price == nil).
// Candidates are immutable once built for a turn — the ranking engine never
// writes to them.
type Candidate struct {
	// Name is the venue display name.
	Name string `json:"name"`
	// Rating is the average user rating on a 0–5 scale, or nil if unknown.
	Rating *float64 `json:"rating,omitempty"`
	// RatingsTotal is the number of ratings behind Rating, or nil if unknown.
	RatingsTotal *int `json:"ratings_total,omitempty"`
	// Price is the provider price level on a 0–4 scale, or nil if unknown.
	Price *int `json:"price,omitempty"`
	// OpenNow reports whether the venue was open at fetch time, or nil if unknown.
	OpenNow *bool `json:"open_now,omitempty"`
	// Address is the formatted street address. May be empty.
	Address string `json:"address"`
	// Website is the venue website URL. May be empty.
	Website string `json:"website,omitempty"`
	// Reviews holds at most two review snippets (see maxReviewSnippets).
	Reviews []string `json:"reviews,omitempty"`
}

// RawPlace is a single record as returned by a place-search provider, before
// normalization. Numeric and boolean fields are deliberately typed as `any`:
// providers have been observed to return "" or strings where numbers are
// documented, and the projection into Candidate must coerce rather than fail.
type RawPlace struct {
	// Name is the provider's display name for the place.
	Name string `json:"place_name"`
	// ID is the provider's stable place identifier.
	ID string `json:"place_id"`
	// Address is the formatted address or vicinity string.
	Address string `json:"place_address"`
	// Type is the provider's primary category for the place.
	Type string `json:"place_type"`
	// Rating is the average rating. May be a number, a numeric string, or absent.
	Rating any `json:"place_rating"`
	// RatingsTotal is the rating count. Same caveats as Rating.
	RatingsTotal any `json:"place_user_ratings_total"`
	// Price is the price level (0–4). Same caveats as Rating.
	Price any `json:"place_price_level"`
	// OpenNow reports open-at-fetch-time status, or nil when unknown.
	OpenNow any `json:"place_open_now"`
	// Website is the place website URL, if the provider exposes one.
	Website string `json:"place_website"`
	// Reviews holds raw review snippet texts, uncapped.
	Reviews []string `json:"place_reviews"`
}

// Fetcher is the place-search capability consumed by the orchestrator.
// Implementations perform the network call; returning zero records is a
// valid result, not an error. Implementations must honor ctx deadlines and
// be safe to call from multiple goroutines.
type Fetcher interface {
	// Fetch returns up to maxResults raw place records near loc matching any
	// of the search terms within radiusMeters.
	Fetch(ctx context.Context, loc Location, terms []string, radiusMeters, maxResults int) ([]RawPlace, error)
}
