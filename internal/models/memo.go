package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoStyle is the presentation record a memo is rendered with.
type MemoStyle struct {
	Color string `json:"color"`
	Font  string `json:"font"`
}

// Memo is an ambient public note on the community board. Memos share the
// moderation pipeline with chat but are independently append-only; only the
// most recent N are shown.
type Memo struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Text      string    `gorm:"type:text" json:"text"`
	Style     MemoStyle `gorm:"serializer:json;type:jsonb" json:"style"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// BeforeCreate populates the primary key and post time.
func (m *Memo) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}
