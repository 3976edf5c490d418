package router

import (
	"encoding/json"
	"strings"
)

// defaultDecision is the fixed fallback substituted when the model output
// is unparseable. It is a valid decision, never an error.
var defaultDecision = Decision{
	Intent:      IntentNotClear,
	HasLocation: false,
	HasPlaces:   false,
}

// parseDecision turns raw model output into a Decision through three tiers:
//
//  1. strict JSON parse of the whole output
//  2. parse of the first-'{' .. last-'}' substring (models love to wrap
//     JSON in prose or markdown fences)
//  3. the fixed default decision
//
// The tiers are deliberately explicit rather than a single recover-all so
// the drift behavior of the model can be observed per tier.
func parseDecision(text string) (Decision, ParseOutcome) {
	if d, ok := tryDecode(text); ok {
		return d, ParseOK
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if d, ok := tryDecode(text[start : end+1]); ok {
			return d, ParseExtracted
		}
	}

	return defaultDecision, ParseDefaulted
}

// tryDecode attempts a strict decode plus intent validation. A JSON object
// carrying an unknown intent is treated as unparseable — a syntactically
// valid but semantically wrong decision must not slip through.
func tryDecode(text string) (Decision, bool) {
	var d Decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Decision{}, false
	}
	intent, ok := canonicalIntent(d.Intent)
	if !ok {
		return Decision{}, false
	}
	d.Intent = intent
	return d, true
}

// canonicalIntent validates and normalizes the intent value. The hyphenated
// "NOT-CLEAR" spelling is accepted for compatibility with older prompt
// wordings that drifted through model fine-tunes.
func canonicalIntent(in Intent) (Intent, bool) {
	switch Intent(strings.ToUpper(strings.TrimSpace(string(in)))) {
	case IntentSmalltalk:
		return IntentSmalltalk, true
	case IntentRecommendation:
		return IntentRecommendation, true
	case IntentPlaceDetails:
		return IntentPlaceDetails, true
	case IntentNotClear, Intent("NOT-CLEAR"):
		return IntentNotClear, true
	default:
		return "", false
	}
}
