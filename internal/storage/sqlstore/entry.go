package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"apod_syncer/internal/domain"
)

type entryRow struct {
	Date           string  `db:"date"`
	Title          string  `db:"title"`
	Explanation    string  `db:"explanation"`
	URL            string  `db:"url"`
	HDURL          *string `db:"hdurl"`
	ThumbnailURL   *string `db:"thumbnail_url"`
	MediaType      string  `db:"media_type"`
	Copyright      *string `db:"copyright"`
	ServiceVersion *string `db:"service_version"`
}

const entryColumns = `date, title, explanation, url, hdurl, thumbnail_url, media_type, copyright, service_version`

type EntryStore struct {
	db  *sqlx.DB
	loc *time.Location
}

// NewEntryStore returns a store whose dates are materialized in loc.
func NewEntryStore(db *sqlx.DB, loc *time.Location) *EntryStore {
	if loc == nil {
		loc = time.Local
	}
	return &EntryStore{db: db, loc: loc}
}

// InsertIgnore inserts entries whose date is not stored yet and returns how
// many rows were inserted. Existing dates are never overwritten.
func (s *EntryStore) InsertIgnore(ctx context.Context, entries []domain.Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	exec := GetExecutor(ctx, s.db)

	var sb strings.Builder
	sb.WriteString("INSERT INTO apods (" + entryColumns + ") VALUES ")
	valueArgs := make([]interface{}, 0, len(entries)*9)

	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs,
			formatDate(e.Date),
			e.Title,
			e.Explanation,
			e.URL,
			e.HDURL,
			e.ThumbnailURL,
			e.MediaType,
			e.Copyright,
			e.ServiceVersion,
		)
	}
	sb.WriteString(" ON CONFLICT (date) DO NOTHING")

	res, err := exec.ExecContext(ctx, exec.Rebind(sb.String()), valueArgs...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListRange returns entries dated within [start, end], newest first.
func (s *EntryStore) ListRange(ctx context.Context, start, end time.Time) ([]domain.Entry, error) {
	exec := GetExecutor(ctx, s.db)

	query := exec.Rebind(`SELECT ` + entryColumns + ` FROM apods WHERE date BETWEEN ? AND ? ORDER BY date DESC`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, exec, &rows, query, formatDate(start), formatDate(end)); err != nil {
		return nil, err
	}
	return s.toEntries(rows)
}

// ListAll returns every cached entry, newest first.
func (s *EntryStore) ListAll(ctx context.Context) ([]domain.Entry, error) {
	exec := GetExecutor(ctx, s.db)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, exec, &rows, `SELECT `+entryColumns+` FROM apods ORDER BY date DESC`); err != nil {
		return nil, err
	}
	return s.toEntries(rows)
}

func (s *EntryStore) Get(ctx context.Context, date time.Time) (*domain.Entry, error) {
	exec := GetExecutor(ctx, s.db)

	var row entryRow
	query := exec.Rebind(`SELECT ` + entryColumns + ` FROM apods WHERE date = ?`)

	err := sqlx.GetContext(ctx, exec, &row, query, formatDate(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	entry, err := s.toEntry(row)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *EntryStore) Exists(ctx context.Context, date time.Time) (bool, error) {
	exec := GetExecutor(ctx, s.db)

	var count int
	query := exec.Rebind(`SELECT COUNT(*) FROM apods WHERE date = ?`)
	if err := sqlx.GetContext(ctx, exec, &count, query, formatDate(date)); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *EntryStore) CountRange(ctx context.Context, start, end time.Time) (int, error) {
	exec := GetExecutor(ctx, s.db)

	var count int
	query := exec.Rebind(`SELECT COUNT(*) FROM apods WHERE date BETWEEN ? AND ?`)
	if err := sqlx.GetContext(ctx, exec, &count, query, formatDate(start), formatDate(end)); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *EntryStore) toEntries(rows []entryRow) ([]domain.Entry, error) {
	entries := make([]domain.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := s.toEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *EntryStore) toEntry(row entryRow) (domain.Entry, error) {
	date, err := time.ParseInLocation(domain.DateLayout, row.Date, s.loc)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("parse stored date %q: %w", row.Date, err)
	}
	return domain.Entry{
		Date:           date,
		Title:          row.Title,
		Explanation:    row.Explanation,
		URL:            row.URL,
		HDURL:          row.HDURL,
		ThumbnailURL:   row.ThumbnailURL,
		MediaType:      row.MediaType,
		Copyright:      row.Copyright,
		ServiceVersion: row.ServiceVersion,
	}, nil
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
