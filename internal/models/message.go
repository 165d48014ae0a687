package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SenderKind tags who authored a message. It is set once at creation so
// consumers never have to infer the sender type from the display label.
type SenderKind string

const (
	SenderAI                SenderKind = "ai"
	SenderPeerVolunteer     SenderKind = "peer_volunteer"
	SenderVerifiedCounselor SenderKind = "verified_counselor"
	SenderCitizen           SenderKind = "citizen"
	SenderSystem            SenderKind = "system"
)

// Message is one chat turn scoped to a ticket's session. Messages are
// immutable and append-only; the transcript of a ticket is the set of its
// messages ordered by Timestamp ascending.
type Message struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"ticketId"`
	Text       string     `gorm:"type:text" json:"text"`
	IsUser     bool       `json:"isUser"`
	Sender     string     `json:"sender"`
	SenderKind SenderKind `gorm:"type:varchar(32)" json:"senderKind"`
	IsVerified bool       `json:"isVerified,omitempty"`
	Timestamp  time.Time  `gorm:"index" json:"timestamp"`
}

// BeforeCreate populates the primary key and send time.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}
