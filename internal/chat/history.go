package chat

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/fitadvisor/backend/internal/llm"
	"github.com/fitadvisor/backend/internal/models"
)

// HistoryTrimmer keeps the replayed history inside the model's context
// window. Messages are kept newest-first until the token budget is filled;
// the final message (the current user turn) is always kept. Under the
// budget the trim is the identity.
type HistoryTrimmer struct {
	encoding *tiktoken.Tiktoken
	budget   int
}

func NewHistoryTrimmer(budget int) *HistoryTrimmer {
	// cl100k_base is an approximation for non-OpenAI models; close enough
	// for a budget guard.
	encoding, _ := tiktoken.GetEncoding("cl100k_base")
	return &HistoryTrimmer{
		encoding: encoding,
		budget:   budget,
	}
}

func (t *HistoryTrimmer) Trim(messages []llm.Message) []llm.Message {
	if len(messages) <= 1 {
		return messages
	}

	last := messages[len(messages)-1]
	total := t.estimate(last.Content)

	kept := make([]llm.Message, 0, len(messages))
	for i := len(messages) - 2; i >= 0; i-- {
		cost := t.estimate(messages[i].Content)
		if total+cost > t.budget {
			break
		}
		total += cost
		kept = append(kept, messages[i])
	}

	// kept was gathered newest-first; restore chronological order.
	trimmed := make([]llm.Message, 0, len(kept)+1)
	for i := len(kept) - 1; i >= 0; i-- {
		trimmed = append(trimmed, kept[i])
	}
	trimmed = append(trimmed, last)

	// The model API requires the list to open with a user turn, so an
	// orphaned assistant reply left at the head is dropped too.
	for len(trimmed) > 1 && trimmed[0].Role != models.RoleUser {
		trimmed = trimmed[1:]
	}
	return trimmed
}

func (t *HistoryTrimmer) estimate(text string) int {
	if t.encoding == nil {
		return len(text) / 4
	}
	return len(t.encoding.Encode(text, nil, nil))
}
