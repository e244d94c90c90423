package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
)

// pollBatch caps how many pending triggers one sweep picks up.
const pollBatch = 25

type pendingLister interface {
	ListUnprocessed(ctx context.Context, limit int32) ([]domain.NotificationTrigger, error)
}

// Worker is the recovery half of at-least-once dispatch: enqueue-time async
// dispatch handles the common case, the worker re-drives triggers whose
// first invocation died before the terminal write. Both paths funnel into
// the same idempotent Dispatch.
type Worker struct {
	svc      Service
	pending  pendingLister
	interval time.Duration
	timeout  time.Duration
}

func NewWorker(svc Service, pending pendingLister, interval, timeout time.Duration) *Worker {
	return &Worker{svc: svc, pending: pending, interval: interval, timeout: timeout}
}

// Start runs the poll loop until ctx is cancelled. In-flight dispatches are
// not cancelled with it: each runs on its own detached timeout context so a
// claimed job always reaches its terminal write.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("dispatch worker stopping")
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

func (w *Worker) sweep(ctx context.Context) {
	pending, err := w.pending.ListUnprocessed(ctx, pollBatch)
	if err != nil {
		slog.Error("list pending triggers failed", "err", err)
		return
	}
	for _, t := range pending {
		dctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := w.svc.Dispatch(dctx, t.TriggerID); err != nil {
			slog.Error("dispatch failed", "trigger", t.TriggerID, "err", err)
		}
		cancel()
	}
}
