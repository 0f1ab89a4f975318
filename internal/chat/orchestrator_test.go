package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitadvisor/backend/internal/llm"
	"github.com/fitadvisor/backend/internal/models"
)

// fakeStore keeps messages in memory, mirroring the real store's ordering
// guarantee for appends made through it.
type fakeStore struct {
	mu        sync.Mutex
	history   []models.Message
	loadErr   error
	appendErr error
	appends   []models.Message
}

func (f *fakeStore) Append(ctx context.Context, sessionID, role, content string, timestamp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	msg := models.Message{
		ID:        uint(len(f.history) + 1),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: timestamp,
		CreatedAt: time.Now(),
	}
	f.appends = append(f.appends, msg)
	f.history = append(f.history, msg)
	return nil
}

func (f *fakeStore) LoadOrdered(ctx context.Context, sessionID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]models.Message(nil), f.history...), nil
}

type fakeStreamer struct {
	chunks       []string
	gotMessages  []llm.Message
	gotSystem    string
	streamCalled bool
}

func (f *fakeStreamer) Stream(ctx context.Context, messages []llm.Message, systemPrompt string) <-chan string {
	f.streamCalled = true
	f.gotMessages = messages
	f.gotSystem = systemPrompt

	out := make(chan string)
	go func() {
		defer close(out)
		for _, chunk := range f.chunks {
			out <- chunk
		}
	}()
	return out
}

type fakeRenderer struct{}

func (fakeRenderer) Render(resume, jd string) string {
	return fmt.Sprintf("SYSTEM resume=%s jd=%s", resume, jd)
}

func newTestOrchestrator(store *fakeStore, streamer *fakeStreamer) *Orchestrator {
	return NewOrchestrator(store, streamer, fakeRenderer{}, 150000)
}

func collectSnapshots(ch <-chan Snapshot) []Snapshot {
	var snapshots []Snapshot
	for s := range ch {
		snapshots = append(snapshots, s)
	}
	return snapshots
}

func TestSubmitTurnEmptyMessageIsNoOp(t *testing.T) {
	store := &fakeStore{}
	streamer := &fakeStreamer{chunks: []string{"never"}}
	o := newTestOrchestrator(store, streamer)

	snapshots := collectSnapshots(o.SubmitTurn(context.Background(), "   \n\t", "s1", "R", "J"))

	assert.Empty(t, snapshots)
	assert.Empty(t, store.appends)
	assert.False(t, streamer.streamCalled)
}

func TestSubmitTurnFullTurn(t *testing.T) {
	store := &fakeStore{}
	streamer := &fakeStreamer{chunks: []string{"Hi", " there", "!"}}
	o := newTestOrchestrator(store, streamer)

	snapshots := collectSnapshots(o.SubmitTurn(context.Background(), "Hello", "s1", "R1", "J1"))

	// One snapshot before streaming plus one per chunk, never batched.
	require.Len(t, snapshots, 4)
	for _, s := range snapshots {
		assert.True(t, s.ClearInput)
	}

	first := snapshots[0]
	require.Len(t, first.Turns, 1)
	assert.Equal(t, "Hello", first.Turns[0].User)
	assert.Empty(t, first.Turns[0].Assistant)

	assert.Equal(t, "Hi", snapshots[1].Turns[0].Assistant)
	assert.Equal(t, "Hi there", snapshots[2].Turns[0].Assistant)

	final := snapshots[len(snapshots)-1]
	assert.Equal(t, "Hi there!", final.Turns[len(final.Turns)-1].Assistant)

	// Exactly one user append followed by exactly one assistant append.
	require.Len(t, store.appends, 2)
	assert.Equal(t, models.RoleUser, store.appends[0].Role)
	assert.Equal(t, "Hello", store.appends[0].Content)
	assert.Equal(t, models.RoleAssistant, store.appends[1].Role)
	assert.Equal(t, "Hi there!", store.appends[1].Content)

	// The system prompt reflects the current documents and travels
	// out-of-band, not in the message list.
	assert.Equal(t, "SYSTEM resume=R1 jd=J1", streamer.gotSystem)
	require.Len(t, streamer.gotMessages, 1)
	assert.Equal(t, models.RoleUser, streamer.gotMessages[0].Role)
}

func TestSubmitTurnFiltersSystemRows(t *testing.T) {
	store := &fakeStore{history: []models.Message{
		{SessionID: "s1", Role: models.RoleSystem, Content: "stored system row"},
		{SessionID: "s1", Role: models.RoleUser, Content: "earlier question"},
		{SessionID: "s1", Role: models.RoleAssistant, Content: "earlier answer"},
	}}
	streamer := &fakeStreamer{chunks: []string{"ok"}}
	o := newTestOrchestrator(store, streamer)

	collectSnapshots(o.SubmitTurn(context.Background(), "follow-up", "s1", "R", "J"))

	require.Len(t, streamer.gotMessages, 3)
	for _, msg := range streamer.gotMessages {
		assert.NotEqual(t, models.RoleSystem, msg.Role)
	}
	assert.Equal(t, "earlier question", streamer.gotMessages[0].Content)
	assert.Equal(t, "earlier answer", streamer.gotMessages[1].Content)
	assert.Equal(t, "follow-up", streamer.gotMessages[2].Content)
}

func TestSubmitTurnPriorTurnsUnchangedInSnapshots(t *testing.T) {
	store := &fakeStore{history: []models.Message{
		{SessionID: "s1", Role: models.RoleUser, Content: "earlier question"},
		{SessionID: "s1", Role: models.RoleAssistant, Content: "earlier answer"},
	}}
	streamer := &fakeStreamer{chunks: []string{"new ", "answer"}}
	o := newTestOrchestrator(store, streamer)

	snapshots := collectSnapshots(o.SubmitTurn(context.Background(), "follow-up", "s1", "R", "J"))

	for _, s := range snapshots {
		require.Len(t, s.Turns, 2)
		assert.Equal(t, "earlier question", s.Turns[0].User)
		assert.Equal(t, "earlier answer", s.Turns[0].Assistant)
		assert.Equal(t, "follow-up", s.Turns[1].User)
	}
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, "new answer", final.Turns[1].Assistant)
}

func TestSubmitTurnHistoryLoadFailureDegradesToCurrentMessage(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("connection reset")}
	streamer := &fakeStreamer{chunks: []string{"reply"}}
	o := newTestOrchestrator(store, streamer)

	snapshots := collectSnapshots(o.SubmitTurn(context.Background(), "Hello", "s1", "R", "J"))

	// The turn survives with only the current message as model context.
	require.NotEmpty(t, snapshots)
	require.Len(t, streamer.gotMessages, 1)
	assert.Equal(t, models.RoleUser, streamer.gotMessages[0].Role)
	assert.Equal(t, "Hello", streamer.gotMessages[0].Content)

	final := snapshots[len(snapshots)-1]
	assert.Equal(t, "reply", final.Turns[len(final.Turns)-1].Assistant)
}

func TestSubmitTurnConsumerDisconnectStillPersistsReply(t *testing.T) {
	store := &fakeStore{}
	streamer := &fakeStreamer{chunks: []string{"one ", "two ", "three"}}
	o := newTestOrchestrator(store, streamer)

	ctx, cancel := context.WithCancel(context.Background())
	out := o.SubmitTurn(ctx, "Hello", "s1", "R", "J")

	<-out // initial snapshot
	<-out // first chunk
	cancel()
	// The consumer walks away without draining the channel; the turn must
	// still run to terminal and persist the whole accumulated reply.

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.appends) == 2
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assistant := store.appends[1]
	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, "one two three", assistant.Content)
}

func TestSubmitTurnAppendFailureWithStaleUserTail(t *testing.T) {
	// A stale unanswered user row must not be mistaken for the current
	// message when the current append fails to land.
	store := &fakeStore{
		history:   []models.Message{{SessionID: "s1", Role: models.RoleUser, Content: "old question"}},
		appendErr: errors.New("insert failed"),
	}
	streamer := &fakeStreamer{chunks: []string{"reply"}}
	o := newTestOrchestrator(store, streamer)

	collectSnapshots(o.SubmitTurn(context.Background(), "new question", "s1", "R", "J"))

	require.Len(t, streamer.gotMessages, 2)
	assert.Equal(t, "old question", streamer.gotMessages[0].Content)
	assert.Equal(t, "new question", streamer.gotMessages[1].Content)
}

func TestSubmitTurnPersistsPartialWithErrorChunk(t *testing.T) {
	// The streaming client surfaces transport errors as one final visible
	// chunk; the orchestrator persists partial text plus that chunk.
	store := &fakeStore{}
	streamer := &fakeStreamer{chunks: []string{"partial ", "Error during streaming: connection reset"}}
	o := newTestOrchestrator(store, streamer)

	snapshots := collectSnapshots(o.SubmitTurn(context.Background(), "Hello", "s1", "R", "J"))

	require.Len(t, store.appends, 2)
	assistant := store.appends[1]
	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, "partial Error during streaming: connection reset", assistant.Content)

	final := snapshots[len(snapshots)-1]
	assert.Contains(t, final.Turns[len(final.Turns)-1].Assistant, "Error during streaming:")
}
