package realtime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/peerhaven/backend/internal/models"
)

// TicketSource loads the full ticket collection in display order.
type TicketSource interface {
	List(ctx context.Context) ([]models.Ticket, error)
}

// MessageSource loads the full message collection in send order.
type MessageSource interface {
	ListAll(ctx context.Context) ([]models.Message, error)
}

// MemoSource loads the visible slice of the memo board.
type MemoSource interface {
	Recent(ctx context.Context, limit int) ([]models.Memo, error)
}

// Broadcaster republishes a collection after every committed write: it
// reloads the freshly sorted full set, hands it to the local hub, and emits
// a change event to the AMQP exchange so other instances do the same.
type Broadcaster struct {
	hub       *Hub
	publisher Publisher // nil when the broker is unavailable
	tickets   TicketSource
	messages  MessageSource
	memos     MemoSource
	memoLimit int
	log       *slog.Logger
}

// NewBroadcaster wires the broadcaster. publisher may be nil; the service
// then degrades to single-instance local fan-out.
func NewBroadcaster(hub *Hub, publisher Publisher, tickets TicketSource, messages MessageSource, memos MemoSource, memoLimit int, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		hub:       hub,
		publisher: publisher,
		tickets:   tickets,
		messages:  messages,
		memos:     memos,
		memoLimit: memoLimit,
		log:       log,
	}
}

// TicketsChanged republishes the ticket snapshot and emits the change event.
func (b *Broadcaster) TicketsChanged(ctx context.Context, event string, payload any) {
	b.refresh(ctx, SnapshotTickets)
	b.emit(ctx, event, payload)
}

// MessagesChanged republishes the message snapshot and emits the change event.
func (b *Broadcaster) MessagesChanged(ctx context.Context, event string, payload any) {
	b.refresh(ctx, SnapshotMessages)
	b.emit(ctx, event, payload)
}

// MemosChanged republishes the memo snapshot and emits the change event.
func (b *Broadcaster) MemosChanged(ctx context.Context, event string, payload any) {
	b.refresh(ctx, SnapshotMemos)
	b.emit(ctx, event, payload)
}

// HandleRemote reacts to a change event published by another instance by
// reloading the affected collection into the local hub. The event is not
// re-emitted, so instances never echo each other's events back.
func (b *Broadcaster) HandleRemote(ctx context.Context, routingKey string) {
	switch {
	case strings.HasPrefix(routingKey, "ticket."):
		b.refresh(ctx, SnapshotTickets)
	case strings.HasPrefix(routingKey, "message."):
		b.refresh(ctx, SnapshotMessages)
	case strings.HasPrefix(routingKey, "memo."):
		b.refresh(ctx, SnapshotMemos)
	default:
		b.log.Warn("unrecognized change event", "routingKey", routingKey)
	}
}

func (b *Broadcaster) refresh(ctx context.Context, kind SnapshotKind) {
	snapshot := Snapshot{Kind: kind}
	var err error
	switch kind {
	case SnapshotTickets:
		snapshot.Tickets, err = b.tickets.List(ctx)
	case SnapshotMessages:
		snapshot.Messages, err = b.messages.ListAll(ctx)
	case SnapshotMemos:
		snapshot.Memos, err = b.memos.Recent(ctx, b.memoLimit)
	}
	if err != nil {
		// Subscribers keep their last-known view until the next change.
		b.log.Warn("snapshot reload failed", "kind", string(kind), "error", err)
		return
	}
	b.hub.Publish(snapshot)
}

func (b *Broadcaster) emit(ctx context.Context, event string, payload any) {
	if b.publisher == nil || event == "" {
		return
	}
	if err := b.publisher.Publish(ctx, event, payload); err != nil {
		b.log.Warn("publish change event failed", "event", event, "error", err)
	}
}
