// Package worker hosts background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// MemoPruner is the slice of the memo repository the sweeper needs.
type MemoPruner interface {
	PruneBeyond(ctx context.Context, keep int) (int64, error)
}

// Notifier republishes the memo snapshot after a prune removed rows.
type Notifier interface {
	MemosChanged(ctx context.Context, event string, payload any)
}

// RetentionWorker periodically prunes the memo board down to its retention
// cap so the table does not grow without bound.
type RetentionWorker struct {
	memos    MemoPruner
	notify   Notifier
	interval time.Duration
	keep     int
	log      *slog.Logger
}

// NewRetentionWorker creates the worker.
func NewRetentionWorker(memos MemoPruner, notify Notifier, interval time.Duration, keep int, log *slog.Logger) *RetentionWorker {
	if log == nil {
		log = slog.Default()
	}
	return &RetentionWorker{memos: memos, notify: notify, interval: interval, keep: keep, log: log}
}

// Run starts the sweep loop and should be launched in its own goroutine.
func (w *RetentionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("retention worker shutting down")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	removed, err := w.memos.PruneBeyond(ctx, w.keep)
	if err != nil {
		w.log.Warn("memo prune failed", "error", err)
		return
	}
	if removed == 0 {
		return
	}
	w.log.Info("pruned memos beyond retention cap", "removed", removed, "keep", w.keep)
	if w.notify != nil {
		w.notify.MemosChanged(ctx, "memo.pruned", map[string]any{"removed": removed})
	}
}
