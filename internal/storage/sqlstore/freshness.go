package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"apod_syncer/internal/domain"
)

type FreshnessStore struct {
	db *sqlx.DB
}

func NewFreshnessStore(db *sqlx.DB) *FreshnessStore {
	return &FreshnessStore{db: db}
}

// Get returns the record of the bucket, or nil when it was never synchronized.
func (s *FreshnessStore) Get(ctx context.Context, bucketID string) (*domain.FreshnessRecord, error) {
	exec := GetExecutor(ctx, s.db)

	var record domain.FreshnessRecord
	query := exec.Rebind(`SELECT id, updated_at FROM last_updates WHERE id = ?`)

	err := sqlx.GetContext(ctx, exec, &record, query, bucketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Put creates or overwrites the record of the bucket.
func (s *FreshnessStore) Put(ctx context.Context, record *domain.FreshnessRecord) error {
	exec := GetExecutor(ctx, s.db)

	query := exec.Rebind(`
		INSERT INTO last_updates (id, updated_at)
		VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = EXCLUDED.updated_at`)

	_, err := exec.ExecContext(ctx, query, record.BucketID, record.Timestamp)
	return err
}
