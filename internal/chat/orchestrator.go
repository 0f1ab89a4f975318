package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/fitadvisor/backend/internal/llm"
	"github.com/fitadvisor/backend/internal/models"
)

// ConversationStore is the persistence contract for the message log.
type ConversationStore interface {
	Append(ctx context.Context, sessionID, role, content string, timestamp time.Time) error
	LoadOrdered(ctx context.Context, sessionID string) ([]models.Message, error)
}

// Streamer opens a streaming completion call; the returned channel yields
// ordered text chunks and closes after the terminal chunk (which may be an
// inline error description).
type Streamer interface {
	Stream(ctx context.Context, messages []llm.Message, systemPrompt string) <-chan string
}

// PromptRenderer produces the system prompt for the current documents.
type PromptRenderer interface {
	Render(resume, jd string) string
}

// Turn is one user message and its (possibly still accumulating) reply.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Snapshot is the full transcript view emitted to the caller on every chunk.
// ClearInput tells the UI the submitted message has been accepted.
type Snapshot struct {
	Turns      []Turn `json:"turns"`
	ClearInput bool   `json:"clearInput"`
}

// Orchestrator runs one chat turn as a sequential pipeline: persist the user
// message, reconstruct ordered history from the store, render the system
// prompt, stream the model reply while re-emitting transcript snapshots, and
// persist the final assembled reply.
type Orchestrator struct {
	store   ConversationStore
	model   Streamer
	prompts PromptRenderer
	trimmer *HistoryTrimmer
}

func NewOrchestrator(store ConversationStore, model Streamer, prompts PromptRenderer, historyTokenBudget int) *Orchestrator {
	return &Orchestrator{
		store:   store,
		model:   model,
		prompts: prompts,
		trimmer: NewHistoryTrimmer(historyTokenBudget),
	}
}

// SubmitTurn processes one user message for the session and returns the
// snapshot stream. An empty or whitespace-only message is a silent no-op:
// the channel closes without any store write or snapshot. Store failures
// degrade the turn (logged, reply still streams); they never abort it.
func (o *Orchestrator) SubmitTurn(ctx context.Context, message, sessionID, resume, jd string) <-chan Snapshot {
	out := make(chan Snapshot)

	if strings.TrimSpace(message) == "" {
		close(out)
		return out
	}

	go func() {
		defer close(out)

		if err := o.store.Append(ctx, sessionID, models.RoleUser, message, time.Now()); err != nil {
			log.Printf("Error saving user message: %v", err)
		}

		history, err := o.store.LoadOrdered(ctx, sessionID)
		if err != nil {
			// Degraded turn: reply with only the current message as
			// context rather than killing the stream the user is
			// waiting on. The store self-heals next turn.
			log.Printf("Error retrieving session history: %v", err)
			history = nil
		}

		messages := toModelMessages(history)
		last := len(messages) - 1
		if last < 0 || messages[last].Role != models.RoleUser || messages[last].Content != message {
			// The just-saved user message did not make it back from the
			// store; the model call still needs the current turn. A
			// trailing user row from an earlier degraded turn does not
			// count as this one.
			messages = append(messages, llm.Message{Role: models.RoleUser, Content: message})
		}

		turns := toTurns(messages)
		delivering := emit(ctx, out, turns)

		systemPrompt := o.prompts.Render(resume, jd)

		var fullResponse strings.Builder
		for chunk := range o.model.Stream(ctx, o.trimmer.Trim(messages), systemPrompt) {
			fullResponse.WriteString(chunk)
			if !delivering {
				// Consumer is gone; keep draining to the terminal
				// chunk so the reply still gets persisted whole.
				continue
			}
			turns[len(turns)-1].Assistant = fullResponse.String()
			// Re-emitted on every chunk, never batched; the caller's
			// rendering cadence is driven by these emissions.
			delivering = emit(ctx, out, turns)
		}

		// The accumulated reply must survive a consumer disconnect, so
		// the final append is detached from the request context.
		if err := o.store.Append(context.WithoutCancel(ctx), sessionID, models.RoleAssistant, fullResponse.String(), time.Now()); err != nil {
			log.Printf("Error saving assistant message: %v", err)
		}
	}()

	return out
}

func emit(ctx context.Context, out chan<- Snapshot, turns []Turn) bool {
	snapshot := Snapshot{
		Turns:      append([]Turn(nil), turns...),
		ClearInput: true,
	}
	select {
	case out <- snapshot:
		return true
	case <-ctx.Done():
		return false
	}
}

// toModelMessages translates stored rows into the model's role/content
// pairing. System rows are filtered unconditionally; the system prompt is
// supplied out-of-band per call.
func toModelMessages(history []models.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}

// toTurns folds the flat message list into user/assistant pairs for display.
func toTurns(messages []llm.Message) []Turn {
	turns := make([]Turn, 0, len(messages)/2+1)
	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			turns = append(turns, Turn{User: msg.Content})
			continue
		}
		if len(turns) == 0 {
			turns = append(turns, Turn{})
		}
		turns[len(turns)-1].Assistant = msg.Content
	}
	return turns
}
