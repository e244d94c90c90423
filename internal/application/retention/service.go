package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

type triggerSweeper interface {
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper periodically deletes processed notification triggers older than
// the retention window. Storage-bound only; message and thread data are
// never touched.
type Sweeper struct {
	triggers triggerSweeper
	cronExpr string
	window   time.Duration
}

func NewSweeper(triggers triggerSweeper, cronExpr string, window time.Duration) (*Sweeper, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}
	return &Sweeper{triggers: triggers, cronExpr: cronExpr, window: window}, nil
}

// Start runs the scheduler until ctx is cancelled. Each tick sleeps until
// the next cron occurrence, so the sweep lands at the configured time
// rather than at a fixed interval from process start.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("retention sweeper starting", "cron", s.cronExpr, "window", s.window)
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cronExpr, time.Now().UTC(), false)
		if err != nil {
			slog.Error("retention next tick failed", "cron", s.cronExpr, "err", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("retention sweeper stopping")
			return
		case <-time.After(time.Until(next)):
		}

		if err := s.RunOnce(ctx); err != nil {
			slog.Error("retention sweep failed", "err", err)
		}
	}
}

// RunOnce performs a single sweep. Exported so an operator endpoint or test
// can trigger retention on demand.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.window)
	deleted, err := s.triggers.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	slog.Info("retention sweep complete", "deleted", deleted, "cutoff", cutoff)
	return nil
}
