package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultGoogleBaseURL is the Google Places Web Service API root.
const defaultGoogleBaseURL = "https://maps.googleapis.com/maps/api/place"

// detailFields is the comma-separated field mask requested from the Place
// Details endpoint. Kept minimal — each extra field raises the billing tier.
const detailFields = "website,reviews"

// GooglePlaces implements Fetcher using the Google Places Text Search and
// Place Details REST endpoints via plain HTTP — no SDK dependency required.
// It is safe for concurrent use.
type GooglePlaces struct {
	// apiKey is the Google Maps Platform API key.
	apiKey string
	// baseURL is the API root, overridable for tests.
	baseURL string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// GoogleConfig holds the settings for constructing a GooglePlaces fetcher.
type GoogleConfig struct {
	// APIKey is the Google Maps Platform API key.
	APIKey string
	// BaseURL overrides the API root (default: the public Google endpoint).
	// Used by tests to point at an httptest server.
	BaseURL string
}

// NewGooglePlaces constructs a GooglePlaces fetcher from the given config.
func NewGooglePlaces(cfg *GoogleConfig) (*GooglePlaces, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("places: google fetcher requires an API key")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GooglePlaces{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// googleSearchResult is one entry in the Text Search "results" array.
// The numeric fields are decoded as `any` and coerced during normalization —
// see the RawPlace field comments.
type googleSearchResult struct {
	Name             string   `json:"name"`
	PlaceID          string   `json:"place_id"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Types            []string `json:"types"`
	Rating           any      `json:"rating"`
	UserRatingsTotal any      `json:"user_ratings_total"`
	PriceLevel       any      `json:"price_level"`
	OpeningHours     struct {
		OpenNow any `json:"open_now"`
	} `json:"opening_hours"`
}

// googleSearchResponse is the Text Search endpoint response envelope.
type googleSearchResponse struct {
	Results      []googleSearchResult `json:"results"`
	Status       string               `json:"status"`
	ErrorMessage string               `json:"error_message"`
}

// googleDetailsResponse is the Place Details endpoint response envelope.
type googleDetailsResponse struct {
	Result struct {
		Website string `json:"website"`
		Reviews []struct {
			Text string `json:"text"`
		} `json:"reviews"`
	} `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Fetch returns up to maxResults raw place records near loc matching any of
// the search terms within radiusMeters. Zero results ("ZERO_RESULTS") is a
// valid empty slice, not an error. Each result triggers one Place Details
// call for website and review snippets; a failed details call degrades to a
// record without those fields rather than failing the whole fetch.
func (g *GooglePlaces) Fetch(ctx context.Context, loc Location, terms []string, radiusMeters, maxResults int) ([]RawPlace, error) {
	q := url.Values{}
	q.Set("query", strings.Join(terms, " "))
	q.Set("location", fmt.Sprintf("%f,%f", loc.Lat, loc.Lng))
	q.Set("radius", fmt.Sprintf("%d", radiusMeters))
	q.Set("key", g.apiKey)

	var search googleSearchResponse
	if err := g.get(ctx, g.baseURL+"/textsearch/json?"+q.Encode(), &search); err != nil {
		return nil, err
	}
	switch search.Status {
	case "OK", "ZERO_RESULTS":
	default:
		msg := search.Status
		if search.ErrorMessage != "" {
			msg = fmt.Sprintf("%s: %s", search.Status, search.ErrorMessage)
		}
		return nil, fmt.Errorf("places: text search failed: %s", msg)
	}

	results := search.Results
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}

	raw := make([]RawPlace, 0, len(results))
	for _, r := range results {
		p := RawPlace{
			Name:         r.Name,
			ID:           r.PlaceID,
			Address:      addressOf(r),
			Type:         firstOf(r.Types),
			Rating:       r.Rating,
			RatingsTotal: r.UserRatingsTotal,
			Price:        r.PriceLevel,
			OpenNow:      r.OpeningHours.OpenNow,
		}

		if website, reviews, err := g.details(ctx, r.PlaceID); err == nil {
			p.Website = website
			p.Reviews = reviews
		}

		raw = append(raw, p)
	}

	return raw, nil
}

// details fetches the website and review snippet texts for a single place.
func (g *GooglePlaces) details(ctx context.Context, placeID string) (string, []string, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailFields)
	q.Set("key", g.apiKey)

	var resp googleDetailsResponse
	if err := g.get(ctx, g.baseURL+"/details/json?"+q.Encode(), &resp); err != nil {
		return "", nil, err
	}
	if resp.Status != "OK" {
		return "", nil, fmt.Errorf("places: details failed for %s: %s", placeID, resp.Status)
	}

	var reviews []string
	for _, rv := range resp.Result.Reviews {
		if rv.Text != "" {
			reviews = append(reviews, rv.Text)
		}
	}
	return resp.Result.Website, reviews, nil
}

// get performs a GET request and decodes the JSON response body into out.
func (g *GooglePlaces) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("places: create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("places: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("places: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("places: decode response: %w", err)
	}
	return nil
}

// addressOf prefers the formatted address, falling back to the vicinity
// string Nearby Search responses carry instead.
func addressOf(r googleSearchResult) string {
	if r.FormattedAddress != "" {
		return r.FormattedAddress
	}
	return r.Vicinity
}

// firstOf returns the first element of a slice, or "" when empty.
func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
