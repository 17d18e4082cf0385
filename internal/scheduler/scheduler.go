package scheduler

import (
	"context"
	"log/slog"
	"time"

	"apod_syncer/internal/domain"
)

// Refresher keeps the month containing today fresh.
type Refresher interface {
	RefreshCurrentMonth(ctx context.Context) (domain.SyncResult, bool, error)
}

type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

func NewScheduler(refresher Refresher, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runRefresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runRefresh(ctx)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, synced, err := s.refresher.RefreshCurrentMonth(refreshCtx)
	if err != nil {
		s.logger.Error("refresh failed", "error", err)
		return
	}
	if !synced {
		s.logger.Debug("current month is fresh")
		return
	}
	if failure, ok := result.(domain.SyncFailure); ok {
		s.logger.Warn("scheduled sync reported a remote failure",
			"kind", failure.Kind,
			"message", failure.Message,
		)
	}
}
