package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peerhaven/backend/internal/completion"
	"github.com/peerhaven/backend/internal/models"
	"github.com/peerhaven/backend/internal/repository"
)

// fakeTicketStore mimics the repository's guarded-transition semantics over
// an in-memory map.
type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]models.Ticket
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[uuid.UUID]models.Ticket)}
}

func (f *fakeTicketStore) Create(ctx context.Context, ticket *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusWaiting
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	f.tickets[ticket.ID] = *ticket
	return nil
}

func (f *fakeTicketStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	return &ticket, nil
}

func (f *fakeTicketStore) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var waiting []models.Ticket
	for _, ticket := range f.tickets {
		if ticket.Status == models.TicketStatusWaiting {
			waiting = append(waiting, ticket)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.After(waiting[j].CreatedAt)
	})
	return waiting, nil
}

func (f *fakeTicketStore) Transition(ctx context.Context, id uuid.UUID, from, to models.TicketStatus, volunteerID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok || ticket.Status != from {
		return repository.ErrConflict
	}
	ticket.Status = to
	if volunteerID != nil {
		ticket.VolunteerID = *volunteerID
	}
	f.tickets[id] = ticket
	return nil
}

type fakeMessageStore struct {
	mu        sync.Mutex
	messages  []models.Message
	appendErr error
}

func (f *fakeMessageStore) Append(ctx context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeMessageStore) ForTicket(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var transcript []models.Message
	for _, m := range f.messages {
		if m.TicketID == ticketID {
			transcript = append(transcript, m)
		}
	}
	sort.SliceStable(transcript, func(i, j int) bool {
		return transcript[i].Timestamp.Before(transcript[j].Timestamp)
	})
	return transcript, nil
}

type fakeMemoStore struct {
	mu    sync.Mutex
	memos []models.Memo
}

func (f *fakeMemoStore) Append(ctx context.Context, memo *models.Memo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if memo.ID == uuid.Nil {
		memo.ID = uuid.New()
	}
	if memo.Timestamp.IsZero() {
		memo.Timestamp = time.Now().UTC()
	}
	f.memos = append(f.memos, *memo)
	return nil
}

func (f *fakeMemoStore) Recent(ctx context.Context, limit int) ([]models.Memo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recent := make([]models.Memo, len(f.memos))
	copy(recent, f.memos)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

// fakeNotifier records the change events a write produced.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) TicketsChanged(ctx context.Context, event string, payload any)  { f.record(event) }
func (f *fakeNotifier) MessagesChanged(ctx context.Context, event string, payload any) { f.record(event) }
func (f *fakeNotifier) MemosChanged(ctx context.Context, event string, payload any)   { f.record(event) }

type fakeCompleter struct {
	mu        sync.Mutex
	available bool
	reply     string
	err       error
	calls     int
	lastTurns []completion.Turn
}

func (f *fakeCompleter) Complete(ctx context.Context, turns []completion.Turn, systemInstruction string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTurns = append([]completion.Turn(nil), turns...)
	return f.reply, f.err
}

func (f *fakeCompleter) Available() bool { return f.available }
