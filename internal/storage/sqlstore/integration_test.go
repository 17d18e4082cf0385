//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"apod_syncer/internal/domain"
	"apod_syncer/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, db))
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM apods")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM last_updates")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestEntryStore_InsertIgnore() {
	store := NewEntryStore(s.db, time.UTC)
	date := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	n, err := store.InsertIgnore(s.ctx, []domain.Entry{{
		Date:      date,
		Title:     "First",
		URL:       "https://apod.nasa.gov/a.jpg",
		MediaType: domain.MediaTypeImage,
		Copyright: utils.Ptr("Someone"),
	}})
	s.NoError(err)
	s.Equal(int64(1), n)

	n, err = store.InsertIgnore(s.ctx, []domain.Entry{{
		Date:      date,
		Title:     "Second",
		MediaType: domain.MediaTypeImage,
	}})
	s.NoError(err)
	s.Zero(n)

	var title string
	err = s.db.GetContext(s.ctx, &title, "SELECT title FROM apods WHERE date = $1", "2024-01-01")
	s.NoError(err)
	s.Equal("First", title)
}

func (s *PostgresIntegrationSuite) TestEntryStore_ListRange() {
	store := NewEntryStore(s.db, time.UTC)
	var entries []domain.Entry
	for d := 1; d <= 5; d++ {
		entries = append(entries, domain.Entry{
			Date:      time.Date(2024, time.February, d, 0, 0, 0, 0, time.UTC),
			Title:     "Entry",
			MediaType: domain.MediaTypeImage,
		})
	}
	_, err := store.InsertIgnore(s.ctx, entries)
	s.Require().NoError(err)

	got, err := store.ListRange(s.ctx,
		time.Date(2024, time.February, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 4, 0, 0, 0, 0, time.UTC),
	)
	s.NoError(err)
	s.Require().Len(got, 3)
	s.Equal(4, got[0].Date.Day())
	s.Equal(2, got[2].Date.Day())
}

func (s *PostgresIntegrationSuite) TestFreshnessStore_GetNew() {
	store := NewFreshnessStore(s.db)

	rec, err := store.Get(s.ctx, "apod_2024_1")
	s.NoError(err)
	s.Nil(rec)
}

func (s *PostgresIntegrationSuite) TestFreshnessStore_UpdateExisting() {
	store := NewFreshnessStore(s.db)

	s.NoError(store.Put(s.ctx, &domain.FreshnessRecord{BucketID: "apod_2024_1", Timestamp: 100}))
	s.NoError(store.Put(s.ctx, &domain.FreshnessRecord{BucketID: "apod_2024_1", Timestamp: 200}))

	rec, err := store.Get(s.ctx, "apod_2024_1")
	s.NoError(err)
	s.Require().NotNil(rec)
	s.Equal(int64(200), rec.Timestamp)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	entries := NewEntryStore(s.db, time.UTC)
	freshness := NewFreshnessStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := entries.InsertIgnore(ctx, []domain.Entry{{
			Date:      time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			Title:     "Should Rollback",
			MediaType: domain.MediaTypeImage,
		}})
		if err != nil {
			return err
		}
		if err := freshness.Put(ctx, &domain.FreshnessRecord{BucketID: "apod_2024_3", Timestamp: 1}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM apods")
	s.NoError(err)
	s.Equal(0, count)

	rec, err := freshness.Get(s.ctx, "apod_2024_3")
	s.NoError(err)
	s.Nil(rec)
}
