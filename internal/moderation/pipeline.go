// Package moderation implements the two-stage content check applied before
// any message or memo is stored: fast local rules first, then an optional
// external review for public-surface content only.
package moderation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/peerhaven/backend/internal/completion"
	"github.com/peerhaven/backend/internal/safety"
)

// Surface indicates which part of the platform a text targets. Public memos
// get the stricter second stage; private chat runs local rules only to keep
// live conversation latency low.
type Surface string

const (
	SurfaceChat   Surface = "chat"
	SurfaceMemo   Surface = "memo"
	SurfacePrompt Surface = "prompt"
)

// Decision is the merged accept/reject outcome of the pipeline. Reason is
// set only on rejection and is always the concrete, user-facing explanation.
type Decision struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// Completer is the slice of the completion backend the pipeline needs for
// the external review call.
type Completer interface {
	Complete(ctx context.Context, turns []completion.Turn, systemInstruction string) (string, error)
}

// passToken is the sentinel the reviewer returns for acceptable text; any
// other non-empty answer is treated as the rejection reason.
const passToken = "PASS"

const reviewInstruction = `You are a strict content reviewer for a public community board on a peer-support platform for people in distress.

Review the user's text. REJECT anything that is nonsense, low-effort, sarcastic, mocking, offensive, self-promotional, or not explicitly warm and supportive. APPROVE only clearly positive, encouraging, supportive text.

If the text is acceptable, reply with exactly: PASS
Otherwise reply with one short sentence telling the author why the text was rejected. Reply with nothing else.`

// Pipeline orchestrates the local rule engine and the external reviewer.
type Pipeline struct {
	reviewer Completer
	log      *slog.Logger
}

// NewPipeline builds a pipeline. reviewer may be nil when the external
// backend is not configured; stage two is then skipped entirely, which is
// the same fail-open posture as an unreachable backend.
func NewPipeline(reviewer Completer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{reviewer: reviewer, log: log}
}

// Review gates one text for the given surface.
//
// Stage one always runs and its rejections are final: locally-known-bad
// content is never sent to the external reviewer and never overridden by
// it. Stage two runs only for the public memo surface, and fails open —
// an unreachable or misbehaving review backend must not block the board.
func (p *Pipeline) Review(ctx context.Context, text string, surface Surface) Decision {
	if result := safety.Evaluate(text); !result.Safe {
		return Decision{Safe: false, Reason: result.Reason}
	}
	if surface != SurfaceMemo || p.reviewer == nil {
		return Decision{Safe: true}
	}

	verdict, err := p.reviewer.Complete(ctx, []completion.Turn{
		{Role: completion.RoleUser, Text: text},
	}, reviewInstruction)
	if err != nil {
		p.log.Warn("external review unavailable, failing open", "error", err)
		return Decision{Safe: true}
	}

	verdict = strings.TrimSpace(verdict)
	if verdict == "" || strings.EqualFold(verdict, passToken) {
		return Decision{Safe: true}
	}
	return Decision{Safe: false, Reason: verdict}
}
