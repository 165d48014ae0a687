package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerhaven/backend/internal/models"
	"github.com/peerhaven/backend/internal/moderation"
	"github.com/peerhaven/backend/internal/realtime"
	"github.com/peerhaven/backend/internal/repository"
	"github.com/peerhaven/backend/internal/service"
)

type memStore struct {
	mu       sync.Mutex
	tickets  map[uuid.UUID]models.Ticket
	messages []models.Message
	memos    []models.Memo
}

func newMemStore() *memStore {
	return &memStore{tickets: make(map[uuid.UUID]models.Ticket)}
}

func (s *memStore) Create(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *memStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	return &ticket, nil
}

func (s *memStore) List(ctx context.Context) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Ticket
	for _, ticket := range s.tickets {
		all = append(all, ticket)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (s *memStore) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	all, _ := s.List(ctx)
	var waiting []models.Ticket
	for _, ticket := range all {
		if ticket.Status == models.TicketStatusWaiting {
			waiting = append(waiting, ticket)
		}
	}
	return waiting, nil
}

func (s *memStore) Transition(ctx context.Context, id uuid.UUID, from, to models.TicketStatus, volunteerID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok || ticket.Status != from {
		return repository.ErrConflict
	}
	ticket.Status = to
	if volunteerID != nil {
		ticket.VolunteerID = *volunteerID
	}
	s.tickets[id] = ticket
	return nil
}

func (s *memStore) Append(ctx context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	s.messages = append(s.messages, *message)
	return nil
}

func (s *memStore) ForTicket(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var transcript []models.Message
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			transcript = append(transcript, m)
		}
	}
	sort.SliceStable(transcript, func(i, j int) bool {
		return transcript[i].Timestamp.Before(transcript[j].Timestamp)
	})
	return transcript, nil
}

type memMemoStore struct {
	memStore
}

func (s *memMemoStore) Append(ctx context.Context, memo *models.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if memo.ID == uuid.Nil {
		memo.ID = uuid.New()
	}
	if memo.Timestamp.IsZero() {
		memo.Timestamp = time.Now().UTC()
	}
	s.memos = append(s.memos, *memo)
	return nil
}

func (s *memMemoStore) Recent(ctx context.Context, limit int) ([]models.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent := make([]models.Memo, len(s.memos))
	copy(recent, s.memos)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Timestamp.After(recent[j].Timestamp) })
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

type nopNotifier struct{}

func (nopNotifier) TicketsChanged(ctx context.Context, event string, payload any) {}
func (nopNotifier) MessagesChanged(ctx context.Context, event string, payload any) {}
func (nopNotifier) MemosChanged(ctx context.Context, event string, payload any) {}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	memoStore := &memMemoStore{}
	notify := nopNotifier{}
	pipeline := moderation.NewPipeline(nil, nil)

	matching := service.NewMatchingService(store, notify, nil)
	chat := service.NewChatService(store, pipeline, nil, notify, nil)
	memos := service.NewMemoService(memoStore, pipeline, notify, 50, nil)

	return NewServer(store, matching, chat, memos, realtime.NewHub()), store
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine.ServeHTTP(w, req)
	return w
}

// Full scenario: intake creates a waiting high-priority ticket, a volunteer
// claims it, the citizen sends a moderated message, the volunteer leaves and
// the ticket reappears in the queue with its original creation time.
func TestScenario_intakeClaimChatLeave(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/intake",
		`{"name":"Amy","issue":"Anxiety","distress":5,"tags":["20s","anxiety"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	assert.Equal(t, models.TicketStatusWaiting, ticket.Status)
	assert.Equal(t, models.PriorityHigh, ticket.Priority)
	createdAt := ticket.CreatedAt

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+ticket.ID.String()+"/claim",
		`{"volunteerId":"Ken"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	assert.Equal(t, models.TicketStatusActive, ticket.Status)
	assert.Equal(t, "Ken", ticket.VolunteerID)

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+ticket.ID.String()+"/messages",
		`{"text":"I feel very anxious today","role":"citizen","sender":"Amy"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var message models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &message))
	assert.True(t, message.IsUser)
	assert.Equal(t, models.SenderCitizen, message.SenderKind)

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+ticket.ID.String()+"/leave",
		`{"asVolunteer":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	assert.Equal(t, models.TicketStatusWaiting, ticket.Status)
	assert.Empty(t, ticket.VolunteerID)
	assert.True(t, ticket.CreatedAt.Equal(createdAt), "return to queue must not re-timestamp")

	w = doJSON(t, srv, http.MethodGet, "/api/tickets/waiting", "")
	require.Equal(t, http.StatusOK, w.Code)
	var queue []models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, ticket.ID, queue[0].ID)
}

func TestClaim_conflictReturns409(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/intake", `{"name":"Amy","issue":"Anxiety"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+ticket.ID.String()+"/claim", `{"volunteerId":"Ken"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+ticket.ID.String()+"/claim", `{"volunteerId":"Lin"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSendMessage_rejectionReturns422WithReason(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/intake", `{"name":"Amy","issue":"Anxiety"}`)
	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+ticket.ID.String()+"/messages",
		`{"text":"call me at 0912345678","role":"citizen","sender":"Amy"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "phone", "the concrete reason must be surfaced")
}

func TestListTickets_statusFilter(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/intake", `{"name":"Amy","issue":"Anxiety"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var first models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = doJSON(t, srv, http.MethodPost, "/api/intake", `{"name":"Bo","issue":"Loneliness"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/tickets/"+first.ID.String()+"/claim", `{"volunteerId":"Ken"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/tickets?status=active", "")
	require.Equal(t, http.StatusOK, w.Code)
	var active []models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	w = doJSON(t, srv, http.MethodGet, "/api/tickets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestGetTicket_unknownIDReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/tickets/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/tickets/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemos_postAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/memos",
		`{"text":"You are stronger than you know!","style":{"color":"peach","font":"serif"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/api/memos", "")
	require.Equal(t, http.StatusOK, w.Code)
	var board []models.Memo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 1)
	assert.Equal(t, "peach", board[0].Style.Color)
}

func TestAIChat_unconfiguredBackendFallsBack(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/ai/chat",
		`{"history":[{"role":"user","text":"hello"}],"text":"I had a rough day"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["reply"], "an unconfigured backend must still answer with fallback text")
}
