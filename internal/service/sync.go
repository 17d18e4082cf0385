package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/domain"
)

type SyncService struct {
	source    Source
	entries   EntryStore
	freshness FreshnessStore
	txManager TransactionManager
	publisher Publisher
	metrics   Metrics
	clock     calendar.Clock
	logger    *slog.Logger
	policy    Policy
	locks     *bucketLocks
}

func NewSyncService(
	source Source,
	entries EntryStore,
	freshness FreshnessStore,
	txManager TransactionManager,
	publisher Publisher,
	metrics Metrics,
	clock calendar.Clock,
	logger *slog.Logger,
	policy Policy,
) *SyncService {
	return &SyncService{
		source:    source,
		entries:   entries,
		freshness: freshness,
		txManager: txManager,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		logger:    logger.With("source", source.ID()),
		policy:    policy,
		locks:     newBucketLocks(),
	}
}

// Bounds returns the months that can be navigated to right now.
func (s *SyncService) Bounds() calendar.Bounds {
	now := s.clock.Now()
	return calendar.Bounds{
		Epoch: s.normalize(s.policy.Epoch, now.Location()),
		Today: calendar.DateOf(now),
	}
}

// Range returns the window of dates synchronized for the month containing d.
func (s *SyncService) Range(d time.Time) calendar.Range {
	b := s.Bounds()
	return calendar.Resolve(s.normalize(d, b.Today.Location()), b.Today, b.Epoch)
}

// SelectMonth returns the date a month is selected by: today for the current
// month, otherwise the first day of the month the archive covers.
func (s *SyncService) SelectMonth(m calendar.Month) (time.Time, error) {
	b := s.Bounds()
	if !b.Contains(m) {
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrMonthOutOfRange, m)
	}
	if m == calendar.MonthOf(b.Today) {
		return b.Today, nil
	}
	return calendar.Resolve(m.First(b.Today.Location()), b.Today, b.Epoch).Start, nil
}

// Synchronize fetches the month containing d and records the attempt.
// Remote failures are reported through the returned SyncResult; the error is
// only set for store failures, cancellation and months outside the archive.
func (s *SyncService) Synchronize(ctx context.Context, d time.Time) (domain.SyncResult, error) {
	bucket := calendar.MonthOf(d).BucketID()

	unlock, err := s.locks.acquire(ctx, bucket)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.synchronize(ctx, d)
}

func (s *SyncService) synchronize(ctx context.Context, d time.Time) (domain.SyncResult, error) {
	startTime := time.Now()
	bounds := s.Bounds()
	d = s.normalize(d, bounds.Today.Location())

	if !bounds.Contains(calendar.MonthOf(d)) {
		return nil, fmt.Errorf("%w: %s", domain.ErrMonthOutOfRange, calendar.MonthOf(d))
	}

	r := calendar.Resolve(d, bounds.Today, bounds.Epoch)
	bucket := calendar.MonthOf(r.End).BucketID()
	logger := s.logger.With("bucket", bucket)

	logger.Info("starting sync",
		"start_date", calendar.FormatDate(r.Start),
		"end_date", calendar.FormatDate(r.End),
	)

	fetched, fetchErr := s.fetch(ctx, logger, r)
	if fetchErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	images := filterImages(fetched)

	var timestamp int64
	if len(images) > 0 {
		timestamp = s.clock.Now().UnixMilli()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stored int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if len(images) > 0 {
			n, err := s.entries.InsertIgnore(txCtx, images)
			if err != nil {
				return fmt.Errorf("insert entries: %w", err)
			}
			stored = n
		}

		if err := s.freshness.Put(txCtx, &domain.FreshnessRecord{BucketID: bucket, Timestamp: timestamp}); err != nil {
			return fmt.Errorf("put freshness record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store sync: %w", err)
	}

	var result domain.SyncResult
	if fetchErr != nil {
		result = classify(fetchErr)
	} else {
		result = domain.SyncSuccess{Fetched: len(fetched), Stored: int(stored)}
	}

	s.record(ctx, logger, r, bucket, result, time.Since(startTime))

	return result, nil
}

// fetch requests the range with thumbnails and, when the server fails,
// once more without them.
func (s *SyncService) fetch(ctx context.Context, logger *slog.Logger, r calendar.Range) ([]domain.Entry, error) {
	entries, err := s.fetchRange(ctx, r, true)
	if err == nil {
		return entries, nil
	}

	var remote *domain.RemoteError
	if !errors.As(err, &remote) || remote.Kind != domain.ErrorKindServer {
		return nil, err
	}

	logger.Warn("server error with thumbnails, retrying without", "error", err)
	s.metrics.IncFallback()

	return s.fetchRange(ctx, r, false)
}

func (s *SyncService) fetchRange(ctx context.Context, r calendar.Range, thumbs bool) ([]domain.Entry, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRemoteDuration(thumbs, time.Since(start))
	}()
	return s.source.FetchRange(ctx, r.Start, r.End, thumbs)
}

func (s *SyncService) record(ctx context.Context, logger *slog.Logger, r calendar.Range, bucket string, result domain.SyncResult, elapsed time.Duration) {
	event := &domain.SyncEvent{
		ID:        ulid.Make().String(),
		BucketID:  bucket,
		Start:     calendar.FormatDate(r.Start),
		End:       calendar.FormatDate(r.End),
		Timestamp: s.clock.Now().UTC(),
	}

	switch res := result.(type) {
	case domain.SyncSuccess:
		event.Status = domain.SyncStatusSuccess
		event.Fetched = res.Fetched
		event.Stored = res.Stored
		s.metrics.IncSync(domain.SyncStatusSuccess, "")
		s.metrics.AddEntriesStored(res.Stored)
		logger.Info("sync completed",
			"fetched", res.Fetched,
			"stored", res.Stored,
			"duration", elapsed,
		)
	case domain.SyncFailure:
		event.Status = domain.SyncStatusError
		event.Kind = res.Kind
		event.Message = res.Message
		s.metrics.IncSync(domain.SyncStatusError, res.Kind)
		logger.Error("sync failed",
			"kind", res.Kind,
			"message", res.Message,
			"duration", elapsed,
		)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish sync event", "error", err)
	}
}

func filterImages(entries []domain.Entry) []domain.Entry {
	var images []domain.Entry
	for _, e := range entries {
		if e.IsImage() {
			images = append(images, e)
		}
	}
	return images
}

func classify(err error) domain.SyncFailure {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return domain.SyncFailure{Kind: remote.Kind, Message: remote.Message}
	}

	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return domain.SyncFailure{Kind: domain.ErrorKindUnknown, Message: msg}
}
