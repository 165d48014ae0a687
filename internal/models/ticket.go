package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketStatus describes the life-cycle state of a help request.
type TicketStatus string

const (
	TicketStatusWaiting  TicketStatus = "waiting"
	TicketStatusActive   TicketStatus = "active"
	TicketStatusResolved TicketStatus = "resolved"
)

// TicketPriority ranks how urgently a ticket should be picked up.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// Ticket represents one help-seeker's case, the unit of routing and status
// tracking. Resolved tickets are kept for history and never deleted.
type Ticket struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `json:"name"`
	Issue       string         `json:"issue"`
	Priority    TicketPriority `gorm:"type:varchar(16);index" json:"priority"`
	Status      TicketStatus   `gorm:"type:varchar(16);index" json:"status"`
	Tags        []string       `gorm:"serializer:json;type:jsonb" json:"tags"`
	VolunteerID string         `json:"volunteerId,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// BeforeCreate is a GORM hook that populates the primary key and defaults.
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TicketStatusWaiting
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return nil
}

// ticketTransitions is the legal status graph: waiting → active → resolved,
// plus the single back-edge active → waiting when a volunteer leaves.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusWaiting:  {TicketStatusActive},
	TicketStatusActive:   {TicketStatusWaiting, TicketStatusResolved},
	TicketStatusResolved: {},
}

// CanTransition reports whether moving a ticket from one status to another
// is legal. Resolved is terminal.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range ticketTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
