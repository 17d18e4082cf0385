package service

import (
	"context"
	"fmt"
	"time"

	"apod_syncer/internal/calendar"
)

// Policy holds the tunables of the freshness decision.
type Policy struct {
	// Epoch is the first date the remote source has data for.
	Epoch time.Time
	// CurrentMonthThrottle is the minimum age of the freshness record before
	// the current month is polled again for a missing day.
	CurrentMonthThrottle time.Duration
}

// NeedsUpdate reports whether the month containing d must be synchronized
// before its cached entries can be considered complete. It never mutates state.
func (s *SyncService) NeedsUpdate(ctx context.Context, d time.Time) (bool, error) {
	now := s.clock.Now()
	loc := now.Location()
	d = s.normalize(d, loc)
	month := calendar.MonthOf(d)

	record, err := s.freshness.Get(ctx, month.BucketID())
	if err != nil {
		return false, fmt.Errorf("get freshness record: %w", err)
	}
	if record == nil || record.Timestamp == 0 {
		return true, nil
	}

	if month.Before(calendar.MonthOf(now)) {
		complete, err := s.entries.Exists(ctx, month.LastDay(loc))
		if err != nil {
			return false, fmt.Errorf("check last day: %w", err)
		}
		if complete {
			return false, nil
		}
		// One more attempt is allowed while the record predates the end of the month.
		boundary := month.Next().First(loc)
		return record.Timestamp < boundary.UnixMilli(), nil
	}

	exists, err := s.entries.Exists(ctx, d)
	if err != nil {
		return false, fmt.Errorf("check day: %w", err)
	}
	if exists {
		return false, nil
	}

	return now.Sub(record.Time()) >= s.policy.CurrentMonthThrottle, nil
}

func (s *SyncService) normalize(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
