// Package service contains the platform's control logic: the intake and
// matching state machine, the moderated chat session, and the memo board.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/peerhaven/backend/internal/models"
	"github.com/peerhaven/backend/internal/repository"
)

// ErrIllegalTransition is returned when a requested status change is not an
// edge of the ticket life-cycle graph. The ticket is never mutated.
var ErrIllegalTransition = errors.New("illegal ticket status transition")

// ErrAlreadyClaimed is returned when a claim loses the race: another
// volunteer moved the ticket out of waiting first.
var ErrAlreadyClaimed = errors.New("ticket already claimed by another volunteer")

// ErrInvalidInput is returned for submissions that fail local validation
// before any I/O happens.
var ErrInvalidInput = errors.New("invalid input")

// TicketStore is the persistence surface the matching flow needs.
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListWaiting(ctx context.Context) ([]models.Ticket, error)
	Transition(ctx context.Context, id uuid.UUID, from, to models.TicketStatus, volunteerID *string) error
}

// ChangeNotifier republishes collection snapshots after a committed write.
type ChangeNotifier interface {
	TicketsChanged(ctx context.Context, event string, payload any)
	MessagesChanged(ctx context.Context, event string, payload any)
	MemosChanged(ctx context.Context, event string, payload any)
}

// Intake is one help-seeker's submission.
type Intake struct {
	Name     string
	Issue    string
	Distress int
	Tags     []string
}

// SelfHarmIssue is the intake option that forces critical priority
// regardless of the reported distress score.
const SelfHarmIssue = "Self-harm"

// DerivePriority maps an intake submission to a ticket priority. The table
// is total: self-harm is always critical, distress of four or more is high,
// everything else is medium.
func DerivePriority(distress int, issue string) models.TicketPriority {
	if issue == SelfHarmIssue {
		return models.PriorityCritical
	}
	if distress >= 4 {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

// MatchingService drives the ticket life cycle: intake creates a waiting
// ticket, exactly one volunteer claim moves it to active, and leaving
// either returns it to the queue or resolves it.
type MatchingService struct {
	tickets TicketStore
	notify  ChangeNotifier
	log     *slog.Logger
}

// NewMatchingService builds the service with its dependencies.
func NewMatchingService(tickets TicketStore, notify ChangeNotifier, log *slog.Logger) *MatchingService {
	if log == nil {
		log = slog.Default()
	}
	return &MatchingService{tickets: tickets, notify: notify, log: log}
}

// SubmitIntake derives the priority, creates the ticket in waiting status
// and returns it with its durable id already assigned.
func (s *MatchingService) SubmitIntake(ctx context.Context, in Intake) (*models.Ticket, error) {
	if in.Name == "" || in.Issue == "" {
		return nil, errors.Wrap(ErrInvalidInput, "intake requires a name and an issue")
	}
	ticket := &models.Ticket{
		Name:     in.Name,
		Issue:    in.Issue,
		Priority: DerivePriority(in.Distress, in.Issue),
		Status:   models.TicketStatusWaiting,
		Tags:     in.Tags,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.log.Info("ticket created", "ticket", ticket.ID, "priority", string(ticket.Priority))
	s.notify.TicketsChanged(ctx, "ticket.created", ticket)
	return ticket, nil
}

// Queue returns the waiting tickets in display order (newest first).
func (s *MatchingService) Queue(ctx context.Context) ([]models.Ticket, error) {
	return s.tickets.ListWaiting(ctx)
}

// Claim transitions a waiting ticket to active and records the volunteer as
// owner. The write is guarded on the waiting status, so a concurrent claim
// by another volunteer surfaces as ErrAlreadyClaimed instead of silently
// overwriting ownership.
func (s *MatchingService) Claim(ctx context.Context, id uuid.UUID, volunteerID string) (*models.Ticket, error) {
	if volunteerID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "claim requires a volunteer id")
	}
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(ticket.Status, models.TicketStatusActive) {
		if ticket.Status == models.TicketStatusActive {
			return nil, ErrAlreadyClaimed
		}
		return nil, ErrIllegalTransition
	}
	err = s.tickets.Transition(ctx, id, models.TicketStatusWaiting, models.TicketStatusActive, &volunteerID)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, err
	}
	ticket, err = s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket claimed", "ticket", id, "volunteer", volunteerID)
	s.notify.TicketsChanged(ctx, "ticket.claimed", ticket)
	return ticket, nil
}

// Leave ends a party's participation in an active session. A volunteer
// leaving returns the case to the queue with ownership cleared and the
// original creation time untouched; a citizen leaving resolves the ticket.
func (s *MatchingService) Leave(ctx context.Context, id uuid.UUID, asVolunteer bool) (*models.Ticket, error) {
	if asVolunteer {
		return s.transition(ctx, id, models.TicketStatusWaiting, "ticket.returned", clearedOwner())
	}
	return s.transition(ctx, id, models.TicketStatusResolved, "ticket.resolved", nil)
}

// Resolve terminally closes an active ticket. Any further transition
// attempt on it is rejected.
func (s *MatchingService) Resolve(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return s.transition(ctx, id, models.TicketStatusResolved, "ticket.resolved", nil)
}

func (s *MatchingService) transition(ctx context.Context, id uuid.UUID, to models.TicketStatus, event string, owner *string) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(ticket.Status, to) {
		return nil, ErrIllegalTransition
	}
	err = s.tickets.Transition(ctx, id, ticket.Status, to, owner)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrIllegalTransition
	}
	if err != nil {
		return nil, err
	}
	ticket, err = s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket transitioned", "ticket", id, "status", string(to))
	s.notify.TicketsChanged(ctx, event, ticket)
	return ticket, nil
}

func clearedOwner() *string {
	empty := ""
	return &empty
}
