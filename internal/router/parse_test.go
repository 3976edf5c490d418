package router

import "testing"

func TestParseDecisionStrictJSON(t *testing.T) {
	t.Parallel()

	d, outcome := parseDecision(`{"intent":"RECOMMENDATION","has_location":true,"has_places":false}`)
	if outcome != ParseOK {
		t.Errorf("outcome = %v, want ParseOK", outcome)
	}
	if d.Intent != IntentRecommendation {
		t.Errorf("intent = %v, want RECOMMENDATION", d.Intent)
	}
	if !d.HasLocation || d.HasPlaces {
		t.Errorf("flags = (%v, %v), want (true, false)", d.HasLocation, d.HasPlaces)
	}
}

func TestParseDecisionExtractsFromProse(t *testing.T) {
	t.Parallel()

	raw := "Sure! Here is the classification:\n```json\n" +
		`{"intent":"SMALLTALK","has_location":false,"has_places":false}` +
		"\n```\nLet me know if you need anything else."

	d, outcome := parseDecision(raw)
	if outcome != ParseExtracted {
		t.Errorf("outcome = %v, want ParseExtracted", outcome)
	}
	if d.Intent != IntentSmalltalk {
		t.Errorf("intent = %v, want SMALLTALK", d.Intent)
	}
}

func TestParseDecisionDefaultsOnGarbage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"plain prose", "I could not decide what you meant."},
		{"empty", ""},
		{"broken json", `{"intent": "RECOMMEN`},
		{"unknown intent", `{"intent":"PARTY_TIME","has_location":true,"has_places":true}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, outcome := parseDecision(tc.raw)
			if outcome != ParseDefaulted {
				t.Errorf("outcome = %v, want ParseDefaulted", outcome)
			}
			if d.Intent != IntentNotClear {
				t.Errorf("intent = %v, want NOT_CLEAR", d.Intent)
			}
			if d.HasLocation || d.HasPlaces {
				t.Errorf("flags = (%v, %v), want (false, false)", d.HasLocation, d.HasPlaces)
			}
		})
	}
}

func TestParseDecisionNormalizesIntentSpelling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Intent
	}{
		{`{"intent":"recommendation"}`, IntentRecommendation},
		{`{"intent":" SMALLTALK "}`, IntentSmalltalk},
		{`{"intent":"not-clear"}`, IntentNotClear},
		{`{"intent":"place_details"}`, IntentPlaceDetails},
	}

	for _, tc := range cases {
		d, outcome := parseDecision(tc.raw)
		if outcome != ParseOK {
			t.Errorf("parseDecision(%q) outcome = %v, want ParseOK", tc.raw, outcome)
		}
		if d.Intent != tc.want {
			t.Errorf("parseDecision(%q) intent = %v, want %v", tc.raw, d.Intent, tc.want)
		}
	}
}

func TestParseDecisionMissingFlagsDefaultFalse(t *testing.T) {
	t.Parallel()

	d, outcome := parseDecision(`{"intent":"SMALLTALK"}`)
	if outcome != ParseOK {
		t.Errorf("outcome = %v, want ParseOK", outcome)
	}
	if d.HasLocation || d.HasPlaces {
		t.Errorf("flags = (%v, %v), want (false, false)", d.HasLocation, d.HasPlaces)
	}
}
