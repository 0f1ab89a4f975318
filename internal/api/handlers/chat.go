package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fitadvisor/backend/internal/models"
)

// TurnRequest carries one user message plus the session's documents. The
// client holds the documents from session open; the server stays free of
// per-session state beyond the message rows.
type TurnRequest struct {
	Message        string `json:"message"`
	Resume         string `json:"resume"`
	JobDescription string `json:"jd"`
}

type MessageResponse struct {
	ID        uint      `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func setupStreamHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Transfer-Encoding", "chunked")
}

// StreamTurn submits one user turn and re-emits every transcript snapshot
// from the orchestrator as an SSE data event. An empty message produces an
// empty stream (silent no-op).
func (h *handler) StreamTurn(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setupStreamHeaders(c)

	snapshots := h.orchestrator.SubmitTurn(c.Request.Context(), req.Message, sessionID.String(), req.Resume, req.JobDescription)

	c.Stream(func(w io.Writer) bool {
		snapshot, ok := <-snapshots
		if !ok {
			return false
		}

		payload, err := json.Marshal(snapshot)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		return true
	})
}

// GetSessionMessages returns the persisted ordered history for the session,
// letting a client rebuild its transcript after a reload.
func (h *handler) GetSessionMessages(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	messages, err := h.conversations.LoadOrdered(c.Request.Context(), sessionID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, convertMessagesToResponse(sessionID.String(), messages))
}

func convertMessagesToResponse(sessionID string, messages []models.Message) []MessageResponse {
	response := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		response[i] = MessageResponse{
			ID:        msg.ID,
			SessionID: sessionID,
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}
	return response
}
