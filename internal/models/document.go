package models

import "time"

// Document holds a resume and job description pair, looked up by name
// at session open. Read-only from this service's perspective.
type Document struct {
	ID             uint      `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Name           string `gorm:"uniqueIndex;not null"`
	Resume         string `gorm:"type:text"`
	JobDescription string `gorm:"type:text;column:jd"`
}
