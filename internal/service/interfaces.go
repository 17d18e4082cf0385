package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"apod_syncer/internal/domain"
)

type EntryStore interface {
	InsertIgnore(ctx context.Context, entries []domain.Entry) (int64, error)
	Exists(ctx context.Context, date time.Time) (bool, error)
}

type FreshnessStore interface {
	Get(ctx context.Context, bucketID string) (*domain.FreshnessRecord, error)
	Put(ctx context.Context, record *domain.FreshnessRecord) error
}

type Source interface {
	ID() string
	Name() string
	FetchRange(ctx context.Context, start, end time.Time, thumbs bool) ([]domain.Entry, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, event *domain.SyncEvent) error
	Close() error
}

type Metrics interface {
	IncSync(status string, kind domain.ErrorKind)
	IncFallback()
	AddEntriesStored(n int)
	ObserveRemoteDuration(thumbs bool, d time.Duration)
}
