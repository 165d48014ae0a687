// Package realtime fans full-collection snapshots out to connected clients.
// There is no delta protocol: every change republishes the complete, freshly
// sorted collection, and every client replaces its local view wholesale.
package realtime

import (
	"sync"

	"github.com/peerhaven/backend/internal/models"
)

// SnapshotKind identifies which collection a snapshot replaces.
type SnapshotKind string

const (
	SnapshotTickets  SnapshotKind = "tickets"
	SnapshotMessages SnapshotKind = "messages"
	SnapshotMemos    SnapshotKind = "memos"
)

// Snapshot carries the complete current state of one collection.
type Snapshot struct {
	Kind     SnapshotKind     `json:"kind"`
	Tickets  []models.Ticket  `json:"tickets,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
	Memos    []models.Memo    `json:"memos,omitempty"`
}

// Hub delivers snapshots to in-process subscribers. Publishing never blocks:
// a subscriber that has not drained its channel loses the stale snapshot and
// receives only the latest one, which is all a full-replace feed needs.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Snapshot]struct{})}
}

// Subscribe registers a new subscriber and returns its channel together
// with a cancel function that must be called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the snapshot to every subscriber, replacing any stale
// undelivered snapshot rather than waiting for slow consumers.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
