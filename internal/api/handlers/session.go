package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fitadvisor/backend/internal/store"
)

// SessionResponse is the session-open result. Errors are carried in-band so
// the client can render them as a banner with chat input disabled.
type SessionResponse struct {
	SessionID      string `json:"sessionId"`
	Resume         string `json:"resume"`
	JobDescription string `json:"jd"`
	ChatEnabled    bool   `json:"chatEnabled"`
	Error          string `json:"error,omitempty"`
}

// OpenSession looks up the document named by the q query parameter and mints
// a fresh session identifier. The session is not persisted anywhere; it only
// groups message rows.
func (h *handler) OpenSession(c *gin.Context) {
	sessionID := uuid.NewString()

	name := strings.TrimSpace(c.Query("q"))
	if name == "" {
		c.JSON(http.StatusOK, SessionResponse{
			SessionID: sessionID,
			Error:     "'q' parameter must be specified in the URL",
		})
		return
	}

	document, err := h.documents.GetByName(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			c.JSON(http.StatusOK, SessionResponse{
				SessionID: sessionID,
				Error:     fmt.Sprintf("No document found with name '%s'", name),
			})
			return
		}
		c.JSON(http.StatusOK, SessionResponse{
			SessionID: sessionID,
			Error:     fmt.Sprintf("Database error while retrieving document: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		SessionID:      sessionID,
		Resume:         document.Resume,
		JobDescription: document.JobDescription,
		ChatEnabled:    true,
	})
}
