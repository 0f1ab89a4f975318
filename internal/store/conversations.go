package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fitadvisor/backend/internal/models"
)

// Conversations is the append-only message log, keyed by session identifier.
// Messages are never mutated or deleted.
type Conversations struct {
	db *gorm.DB
}

func NewConversations(db *gorm.DB) *Conversations {
	return &Conversations{db: db}
}

// Append durably inserts one message. Failures are returned to the caller
// rather than panicking; a missed persistence must not break an in-flight
// streaming reply.
func (s *Conversations) Append(ctx context.Context, sessionID, role, content string, timestamp time.Time) error {
	message := models.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: timestamp,
	}

	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// LoadOrdered returns every message for the session ordered by
// (timestamp, created_at) ascending. The store is the source of truth for
// history; there is no conversation cache, which costs one read per turn
// but bounds memory.
func (s *Conversations) LoadOrdered(ctx context.Context, sessionID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session history: %w", err)
	}
	return messages, nil
}
