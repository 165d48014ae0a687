// Package http exposes the platform over a gin API: intake, the matching
// queue, moderated chat, the memo board, the AI listener, and SSE snapshot
// streams for the realtime feed.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peerhaven/backend/internal/completion"
	"github.com/peerhaven/backend/internal/models"
	"github.com/peerhaven/backend/internal/realtime"
	"github.com/peerhaven/backend/internal/repository"
	"github.com/peerhaven/backend/internal/service"
)

// TicketReader is the read-only slice of the ticket store the API needs
// directly (full collection and single-ticket lookups).
type TicketReader interface {
	List(ctx context.Context) ([]models.Ticket, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
}

// Server wraps the gin engine and collaborators needed to handle API
// requests.
type Server struct {
	Engine   *gin.Engine
	tickets  TicketReader
	matching *service.MatchingService
	chat     *service.ChatService
	memos    *service.MemoService
	hub      *realtime.Hub
}

// NewServer constructs a new API server and registers routes.
func NewServer(tickets TicketReader, matching *service.MatchingService, chat *service.ChatService, memos *service.MemoService, hub *realtime.Hub) *Server {
	router := gin.Default()
	srv := &Server{
		Engine:   router,
		tickets:  tickets,
		matching: matching,
		chat:     chat,
		memos:    memos,
		hub:      hub,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.Engine.GET("/health", s.health)
	s.Engine.GET("/ready", s.health)

	api := s.Engine.Group("/api")
	api.POST("/intake", s.submitIntake)
	api.GET("/tickets", s.listTickets)
	api.GET("/tickets/waiting", s.listWaiting)
	api.GET("/tickets/:id", s.getTicket)
	api.POST("/tickets/:id/claim", s.claimTicket)
	api.POST("/tickets/:id/leave", s.leaveTicket)
	api.POST("/tickets/:id/resolve", s.resolveTicket)
	api.GET("/tickets/:id/messages", s.listMessages)
	api.POST("/tickets/:id/messages", s.sendMessage)
	api.POST("/tickets/:id/listener", s.listenerTurn)
	api.POST("/ai/chat", s.aiChat)
	api.GET("/memos", s.listMemos)
	api.POST("/memos", s.postMemo)
	api.GET("/stream/tickets", s.streamTickets)
	api.GET("/stream/tickets/:id/messages", s.streamMessages)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) submitIntake(c *gin.Context) {
	var payload struct {
		Name     string   `json:"name" binding:"required"`
		Issue    string   `json:"issue" binding:"required"`
		Distress int      `json:"distress"`
		Tags     []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ticket, err := s.matching.SubmitIntake(c.Request.Context(), service.Intake{
		Name:     payload.Name,
		Issue:    payload.Issue,
		Distress: payload.Distress,
		Tags:     payload.Tags,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (s *Server) listTickets(c *gin.Context) {
	tickets, err := s.tickets.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if status := c.Query("status"); status != "" {
		filtered := make([]models.Ticket, 0, len(tickets))
		for _, t := range tickets {
			if t.Status == models.TicketStatus(status) {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}
	c.JSON(http.StatusOK, tickets)
}

func (s *Server) listWaiting(c *gin.Context) {
	tickets, err := s.matching.Queue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (s *Server) getTicket(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	ticket, err := s.tickets.FindByID(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) claimTicket(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	var payload struct {
		VolunteerID string `json:"volunteerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ticket, err := s.matching.Claim(c.Request.Context(), id, payload.VolunteerID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) leaveTicket(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	var payload struct {
		AsVolunteer bool `json:"asVolunteer"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ticket, err := s.matching.Leave(c.Request.Context(), id, payload.AsVolunteer)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) resolveTicket(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	ticket, err := s.matching.Resolve(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) listMessages(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	messages, err := s.chat.Transcript(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (s *Server) sendMessage(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	var payload struct {
		Text     string `json:"text" binding:"required"`
		Role     string `json:"role" binding:"required,oneof=citizen volunteer"`
		Sender   string `json:"sender" binding:"required"`
		Verified bool   `json:"verified"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	message, err := s.chat.Send(c.Request.Context(), id, service.SenderProfile{
		Role:     service.Role(payload.Role),
		Name:     payload.Sender,
		Verified: payload.Verified,
	}, payload.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (s *Server) listenerTurn(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	message, err := s.chat.ListenerReply(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (s *Server) aiChat(c *gin.Context) {
	var payload struct {
		History []struct {
			Role string `json:"role" binding:"required,oneof=user model"`
			Text string `json:"text" binding:"required"`
		} `json:"history"`
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	history := make([]completion.Turn, 0, len(payload.History))
	for _, turn := range payload.History {
		history = append(history, completion.Turn{Role: completion.Role(turn.Role), Text: turn.Text})
	}
	reply, err := s.chat.EphemeralReply(c.Request.Context(), history, payload.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) listMemos(c *gin.Context) {
	memos, err := s.memos.Board(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, memos)
}

func (s *Server) postMemo(c *gin.Context) {
	var payload struct {
		Text  string           `json:"text" binding:"required"`
		Style models.MemoStyle `json:"style"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	memo, err := s.memos.Post(c.Request.Context(), payload.Text, payload.Style)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, memo)
}

// streamTickets serves the ticket collection as an SSE stream: the current
// snapshot immediately, then a full replace on every change.
func (s *Server) streamTickets(c *gin.Context) {
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	if tickets, err := s.tickets.List(c.Request.Context()); err == nil {
		c.SSEvent(string(realtime.SnapshotTickets), tickets)
		c.Writer.Flush()
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, open := <-ch:
			if !open {
				return false
			}
			if snapshot.Kind == realtime.SnapshotTickets {
				c.SSEvent(string(snapshot.Kind), snapshot.Tickets)
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// streamMessages serves one ticket's transcript as an SSE stream, filtering
// each full message snapshot down to the ticket's own messages.
func (s *Server) streamMessages(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	if transcript, err := s.chat.Transcript(c.Request.Context(), id); err == nil {
		c.SSEvent(string(realtime.SnapshotMessages), transcript)
		c.Writer.Flush()
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, open := <-ch:
			if !open {
				return false
			}
			if snapshot.Kind == realtime.SnapshotMessages {
				c.SSEvent(string(snapshot.Kind), filterByTicket(snapshot.Messages, id))
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func filterByTicket(messages []models.Message, ticketID uuid.UUID) []models.Message {
	filtered := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.TicketID == ticketID {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func (s *Server) ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps service errors onto HTTP statuses. Moderation rejections
// always carry the concrete reason so the sender learns what was wrong.
func (s *Server) writeError(c *gin.Context, err error) {
	var modErr *service.ModerationError
	switch {
	case errors.As(err, &modErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": modErr.Reason})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
