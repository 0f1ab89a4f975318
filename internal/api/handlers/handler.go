package handlers

import (
	"context"

	"github.com/fitadvisor/backend/internal/chat"
	"github.com/fitadvisor/backend/internal/config"
	"github.com/fitadvisor/backend/internal/models"
)

// DocumentStore resolves a resume/job-description pair by lookup name.
type DocumentStore interface {
	GetByName(ctx context.Context, name string) (*models.Document, error)
}

// Orchestrator runs one chat turn and streams transcript snapshots.
type Orchestrator interface {
	SubmitTurn(ctx context.Context, message, sessionID, resume, jd string) <-chan chat.Snapshot
}

// handler is the core struct with all dependencies
type handler struct {
	documents     DocumentStore
	conversations chat.ConversationStore
	orchestrator  Orchestrator
	config        *config.Config
}

// NewHandler creates a new handler instance
func NewHandler(documents DocumentStore, conversations chat.ConversationStore, orchestrator Orchestrator, config *config.Config) *handler {
	return &handler{
		documents,
		conversations,
		orchestrator,
		config,
	}
}
