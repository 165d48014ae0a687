package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/peerhaven/backend/internal/models"
)

// ErrTicketNotFound is returned when no ticket exists for the given id.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrConflict is returned when a guarded transition matched no row, meaning
// another writer moved the ticket out of the expected status first.
var ErrConflict = errors.New("ticket status changed concurrently")

// TicketRepository provides persistence access for Ticket entities.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a repository using the provided gorm DB.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create persists the ticket; the durable id is assigned before Create
// returns, so callers can hand it to clients without waiting for sync.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(ticket).Error)
}

// FindByID returns the ticket by id.
func (r *TicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, errors.WithStack(err)
	}
	return &ticket, nil
}

// List returns the full ticket collection ordered by creation time
// descending. The realtime feed republishes this snapshot on every change.
func (r *TicketRepository) List(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).Order("created_at desc, id desc").Find(&tickets).Error
	return tickets, errors.WithStack(err)
}

// ListWaiting returns the intake queue view: waiting tickets, newest first.
// The order governs display only, not a processing order.
func (r *TicketRepository) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TicketStatusWaiting).
		Order("created_at desc, id desc").
		Find(&tickets).Error
	return tickets, errors.WithStack(err)
}

// Transition moves a ticket from one status to another with an optimistic
// guard on the expected current status: if another writer got there first
// the update matches no row and ErrConflict is returned, turning the claim
// race into a detectable conflict instead of a silent lost write.
//
// volunteerID nil leaves the owner column untouched; a pointer to the empty
// string clears it (volunteer returning a case to the queue).
func (r *TicketRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.TicketStatus, volunteerID *string) error {
	changes := map[string]any{"status": to}
	if volunteerID != nil {
		changes["volunteer_id"] = *volunteerID
	}
	res := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", id, from).
		Updates(changes)
	if res.Error != nil {
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
