// Package budget sizes composition prompts against a model context window.
// The assistant can sit in front of several chat backends whose tokenizers
// all differ, so counting is a character heuristic rather than a real
// tokenizer: roughly 4 characters per token for English prose, erring on the
// side of over-counting so prompts fit with room to spare.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the heuristic ratio. 4 is the usual figure for
	// English; anything lower over-trims history for no real gain.
	charsPerToken = 4

	// messageOverheadTokens approximates the per-message framing cost most
	// chat APIs charge on top of the content itself.
	messageOverheadTokens = 4

	// DefaultMaxContextTokens is the input budget assumed when the model's
	// real window is unknown. Small enough for 8k-context models with the
	// shortlist payload and the reply still to come.
	DefaultMaxContextTokens = 4000
)

// Estimate returns a rough token count for s. Non-empty strings count as at
// least one token.
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	if n := len(s) / charsPerToken; n > 0 {
		return n
	}
	return 1
}

// EstimateMessages sums the estimated cost of msgs, charging each message
// its role, content, and framing overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverheadTokens + Estimate(string(m.Role)) + Estimate(m.Content)
	}
	return total
}

// TrimHistory drops history messages oldest-first until fixed plus history
// fits in maxTokens. fixed holds the untrimmable part of the prompt (system
// prompt, shortlist payload, current user message); it is never dropped, so
// when fixed alone overflows the budget the returned history is empty.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	fixedTokens := EstimateMessages(fixed)

	// History is a handful of turns at most, so re-estimating the tail on
	// each pass is fine.
	for len(history) > 0 && fixedTokens+EstimateMessages(history) > maxTokens {
		history = history[1:]
	}
	return history
}
