// Package budget estimates prompt size and trims conversation history so the
// assembled prompt fits the model's context window. Backends use different
// tokenizers, so a conservative heuristic is used: 1 token ≈ 4 runes.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the rune-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead approximates the per-message framing tokens most chat
	// APIs add around role and content.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input budget. It fits small
	// local models (qwen2.5:3b, llama3 8B) with room left for the reply.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	n := runes / charsPerToken
	if n == 0 && runes > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count of msgs.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory drops the oldest history messages until fixed + history fits
// within maxTokens. fixed (system prompt, retrieved context, the current
// question) is never trimmed. A user message is dropped together with the
// assistant reply that follows it so the remaining history never opens with
// an orphaned reply.
//
// If even an empty history exceeds the budget the empty slice is returned;
// callers should warn separately when fixed alone is over budget.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 || maxTokens <= 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		drop := 1
		if history[0].Role == schema.User && len(history) > 1 && history[1].Role == schema.Assistant {
			drop = 2
		}
		history = history[drop:]
	}
	return history
}
