package service

import (
	"context"
	"log/slog"

	"github.com/peerhaven/backend/internal/models"
	"github.com/peerhaven/backend/internal/moderation"
)

// MemoStore is the persistence surface the memo board needs.
type MemoStore interface {
	Append(ctx context.Context, memo *models.Memo) error
	Recent(ctx context.Context, limit int) ([]models.Memo, error)
}

// MemoService runs the community board: append-only public notes gated by
// both moderation stages, showing only the most recent entries.
type MemoService struct {
	memos    MemoStore
	pipeline Moderator
	notify   ChangeNotifier
	cap      int
	log      *slog.Logger
}

// NewMemoService builds the service; cap bounds how many memos Board shows.
func NewMemoService(memos MemoStore, pipeline Moderator, notify ChangeNotifier, cap int, log *slog.Logger) *MemoService {
	if log == nil {
		log = slog.Default()
	}
	return &MemoService{memos: memos, pipeline: pipeline, notify: notify, cap: cap, log: log}
}

// Post moderates and stores one memo. Memos are public, so the pipeline
// runs both stages; the external reviewer's rejection reason is surfaced
// verbatim to the author.
func (s *MemoService) Post(ctx context.Context, text string, style models.MemoStyle) (*models.Memo, error) {
	decision := s.pipeline.Review(ctx, text, moderation.SurfaceMemo)
	if !decision.Safe {
		return nil, &ModerationError{Reason: decision.Reason}
	}
	memo := &models.Memo{Text: text, Style: style}
	if err := s.memos.Append(ctx, memo); err != nil {
		return nil, err
	}
	s.notify.MemosChanged(ctx, "memo.created", memo)
	return memo, nil
}

// Board returns the most recent memos up to the configured cap.
func (s *MemoService) Board(ctx context.Context) ([]models.Memo, error) {
	return s.memos.Recent(ctx, s.cap)
}
