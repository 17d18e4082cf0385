package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/domain"
)

// Refresh synchronizes the month containing d when NeedsUpdate says so.
// synced is false when the cached month was already fresh.
func (s *SyncService) Refresh(ctx context.Context, d time.Time) (result domain.SyncResult, synced bool, err error) {
	unlock, err := s.locks.acquire(ctx, calendar.MonthOf(d).BucketID())
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	needs, err := s.NeedsUpdate(ctx, d)
	if err != nil {
		return nil, false, err
	}
	if !needs {
		s.logger.Debug("month is fresh", "month", calendar.MonthOf(d).String())
		return nil, false, nil
	}

	result, err = s.synchronize(ctx, d)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// RefreshCurrentMonth refreshes the month containing today.
func (s *SyncService) RefreshCurrentMonth(ctx context.Context) (domain.SyncResult, bool, error) {
	return s.Refresh(ctx, calendar.Today(s.clock))
}

// bucketLocks allows at most one synchronization per bucket at a time.
type bucketLocks struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newBucketLocks() *bucketLocks {
	return &bucketLocks{sems: make(map[string]*semaphore.Weighted)}
}

func (l *bucketLocks) acquire(ctx context.Context, bucket string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[bucket]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[bucket] = sem
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
