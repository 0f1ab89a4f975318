package models

import "time"

// Message roles. System prompts are passed to the model out-of-band,
// so system rows are never replayed into model context.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents one persisted chat message. Within a session,
// messages are totally ordered by (Timestamp, CreatedAt) ascending.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`
	SessionID string    `gorm:"size:36;not null;index"`
	Role      string    `gorm:"size:10;not null;check:role IN ('system','user','assistant')"`
	Content   string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
}
