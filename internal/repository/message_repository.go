package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/peerhaven/backend/internal/models"
)

// MessageRepository provides append-only persistence for chat messages.
// There is no update or delete: messages are immutable once written.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a repository using the provided gorm DB.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append persists one message.
func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(message).Error)
}

// ForTicket returns the transcript of one ticket: every message with that
// ticket id, ordered ascending by send time with the id as tie-breaker so
// the order is stable for equal timestamps. Isolation between tickets is
// the filter itself; there is no per-ticket access control.
func (r *MessageRepository) ForTicket(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("timestamp asc, id asc").
		Find(&messages).Error
	return messages, errors.WithStack(err)
}

// ListAll returns the full message collection in send order. The realtime
// feed republishes this snapshot on every change; clients filter by ticket.
func (r *MessageRepository) ListAll(ctx context.Context) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).Order("timestamp asc, id asc").Find(&messages).Error
	return messages, errors.WithStack(err)
}
