package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/peerhaven/backend/internal/completion"
	"github.com/peerhaven/backend/internal/models"
	"github.com/peerhaven/backend/internal/moderation"
)

// Role identifies which party a chat session acts as.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleVolunteer Role = "volunteer"
	RoleListener  Role = "listener"
)

// SenderProfile describes the party sending a message. Verified is only
// honored for volunteers (credentialed professionals).
type SenderProfile struct {
	Role     Role
	Name     string
	Verified bool
}

// MessageStore is the persistence surface the chat session needs.
type MessageStore interface {
	Append(ctx context.Context, message *models.Message) error
	ForTicket(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error)
}

// Moderator gates text before it is stored or forwarded.
type Moderator interface {
	Review(ctx context.Context, text string, surface moderation.Surface) moderation.Decision
}

// Completer generates the AI listener's replies.
type Completer interface {
	Complete(ctx context.Context, turns []completion.Turn, systemInstruction string) (string, error)
	Available() bool
}

// ModerationError carries the concrete reason a text was rejected so the
// sender can learn from it; a generic "blocked" is never shown.
type ModerationError struct {
	Reason string
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("message rejected: %s", e.Reason)
}

// maxContextTurns bounds the history window sent to the completion backend.
const maxContextTurns = 10

// listenerName is the display label of AI-authored messages.
const listenerName = "Listener"

const listenerSystemPrompt = `You are a warm, patient peer listener on an anonymous peer-support platform. The person you are talking to may be anxious, lonely, or overwhelmed. Listen, reflect their feelings back, and respond with short, gentle, encouraging messages. Never give medical advice, never diagnose, and never dismiss what they share. If they mention wanting to hurt themselves, gently encourage them to reach a professional hotline.`

// listenerFallbackText is appended instead of a reply when the completion
// backend fails or is not configured, so a backend outage never surfaces as
// an error inside a support conversation.
const listenerFallbackText = "I'm having trouble finding the right words just now, but I'm still here with you. Take your time, and tell me more whenever you're ready."

// ChatService is the live message exchange bound to one ticket, with every
// send gated by the moderation pipeline.
type ChatService struct {
	messages  MessageStore
	pipeline  Moderator
	completer Completer
	notify    ChangeNotifier
	log       *slog.Logger
}

// NewChatService builds the service. completer may be nil; the AI listener
// then degrades to the fallback text.
func NewChatService(messages MessageStore, pipeline Moderator, completer Completer, notify ChangeNotifier, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		messages:  messages,
		pipeline:  pipeline,
		completer: completer,
		notify:    notify,
		log:       log,
	}
}

// Transcript returns the ticket's messages in send order.
func (s *ChatService) Transcript(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error) {
	return s.messages.ForTicket(ctx, ticketID)
}

// Send runs the moderation pipeline on the text and, if it passes, appends
// it to the ticket's transcript with sender metadata derived from the
// profile. A rejection is returned as *ModerationError and nothing is
// stored.
func (s *ChatService) Send(ctx context.Context, ticketID uuid.UUID, from SenderProfile, text string) (*models.Message, error) {
	decision := s.pipeline.Review(ctx, text, moderation.SurfaceChat)
	if !decision.Safe {
		return nil, &ModerationError{Reason: decision.Reason}
	}
	message := s.buildMessage(ticketID, from, text)
	if err := s.messages.Append(ctx, message); err != nil {
		return nil, err
	}
	s.notify.MessagesChanged(ctx, "message.created", message)
	return message, nil
}

// ListenerReply generates the AI listener's next turn for a ticket: it
// builds a window of at most the ten most recent messages, asks the
// completion backend, and appends the reply as an AI-authored message. Any
// backend failure yields the fallback text instead of an error.
func (s *ChatService) ListenerReply(ctx context.Context, ticketID uuid.UUID) (*models.Message, error) {
	history, err := s.messages.ForTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	text := s.complete(ctx, windowTurns(history))
	message := s.buildMessage(ticketID, SenderProfile{Role: RoleListener, Name: listenerName}, text)
	if err := s.messages.Append(ctx, message); err != nil {
		return nil, err
	}
	s.notify.MessagesChanged(ctx, "message.created", message)
	return message, nil
}

// EphemeralReply answers one turn of an AI-only session that is bound to no
// ticket and persists nothing. The user's text still passes stage-one
// moderation before it is forwarded to the backend.
func (s *ChatService) EphemeralReply(ctx context.Context, history []completion.Turn, text string) (string, error) {
	decision := s.pipeline.Review(ctx, text, moderation.SurfacePrompt)
	if !decision.Safe {
		return "", &ModerationError{Reason: decision.Reason}
	}
	turns := append(history, completion.Turn{Role: completion.RoleUser, Text: text})
	if len(turns) > maxContextTurns {
		turns = turns[len(turns)-maxContextTurns:]
	}
	return s.complete(ctx, turns), nil
}

func (s *ChatService) complete(ctx context.Context, turns []completion.Turn) string {
	if s.completer == nil || !s.completer.Available() {
		return listenerFallbackText
	}
	text, err := s.completer.Complete(ctx, turns, listenerSystemPrompt)
	if err != nil {
		s.log.Warn("completion failed, using fallback", "error", err)
		return listenerFallbackText
	}
	return text
}

func (s *ChatService) buildMessage(ticketID uuid.UUID, from SenderProfile, text string) *models.Message {
	sender := from.Name
	verified := false
	var kind models.SenderKind
	switch from.Role {
	case RoleCitizen:
		kind = models.SenderCitizen
	case RoleVolunteer:
		if from.Verified {
			kind = models.SenderVerifiedCounselor
			verified = true
		} else {
			kind = models.SenderPeerVolunteer
		}
	case RoleListener:
		kind = models.SenderAI
		sender = listenerName
	default:
		kind = models.SenderSystem
	}
	return &models.Message{
		TicketID:   ticketID,
		Text:       text,
		IsUser:     from.Role == RoleCitizen,
		Sender:     sender,
		SenderKind: kind,
		IsVerified: verified,
	}
}

// windowTurns maps the most recent messages of a transcript onto the
// completion wire roles: the help-seeker's turns are "user", everything
// else (volunteer or AI) is "model".
func windowTurns(history []models.Message) []completion.Turn {
	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}
	turns := make([]completion.Turn, 0, len(history))
	for _, m := range history {
		role := completion.RoleModel
		if m.IsUser {
			role = completion.RoleUser
		}
		turns = append(turns, completion.Turn{Role: role, Text: m.Text})
	}
	return turns
}
