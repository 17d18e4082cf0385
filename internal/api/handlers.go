package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/domain"
	"apod_syncer/internal/service"
)

// ClientIDHeader identifies a caller whose month selections supersede each other.
const ClientIDHeader = "X-Client-ID"

type SyncService interface {
	Bounds() calendar.Bounds
	Range(d time.Time) calendar.Range
	SelectMonth(m calendar.Month) (time.Time, error)
	NeedsUpdate(ctx context.Context, d time.Time) (bool, error)
	Synchronize(ctx context.Context, d time.Time) (domain.SyncResult, error)
}

type Selector interface {
	Select(ctx context.Context, clientID string, d time.Time) (domain.SyncResult, bool, error)
}

type EntryReader interface {
	ListRange(ctx context.Context, start, end time.Time) ([]domain.Entry, error)
	Get(ctx context.Context, date time.Time) (*domain.Entry, error)
}

type FreshnessReader interface {
	Get(ctx context.Context, bucketID string) (*domain.FreshnessRecord, error)
}

type Metrics interface {
	IncCacheHit()
	IncCacheMiss()
	ObserveRequest(route string, status int, d time.Duration)
}

type Handler struct {
	service   SyncService
	selector  Selector
	entries   EntryReader
	freshness FreshnessReader
	cache     *MonthCache
	metrics   Metrics
	logger    *slog.Logger
}

func NewHandler(
	svc SyncService,
	selector Selector,
	entries EntryReader,
	freshness FreshnessReader,
	cache *MonthCache,
	metrics Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:   svc,
		selector:  selector,
		entries:   entries,
		freshness: freshness,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

type SyncDTO struct {
	Status  string           `json:"status"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Message string           `json:"message,omitempty"`
	Fetched *int             `json:"fetched,omitempty"`
	Stored  *int             `json:"stored,omitempty"`
}

const (
	SyncStatusFresh      = "fresh"
	SyncStatusSuperseded = "superseded"

	StateSuccess = "success"
	StateEmpty   = "empty"
)

type MonthResponse struct {
	Month   string     `json:"month"`
	Start   string     `json:"start"`
	End     string     `json:"end"`
	State   string     `json:"state"`
	Entries []EntryDTO `json:"entries"`
	Sync    SyncDTO    `json:"sync"`
	Prev    *string    `json:"prev"`
	Next    *string    `json:"next"`
}

type SyncResponse struct {
	Month string  `json:"month"`
	Start string  `json:"start"`
	End   string  `json:"end"`
	Sync  SyncDTO `json:"sync"`
}

type StatusResponse struct {
	Month       string     `json:"month"`
	BucketID    string     `json:"bucket_id"`
	Synced      bool       `json:"synced"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Timestamp   int64      `json:"timestamp"`
	NeedsUpdate bool       `json:"needs_update"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetMonth refreshes the month if needed and returns its cached entries.
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	month, d, ok := h.resolveMonth(w, r)
	if !ok {
		return
	}
	bucket := month.BucketID()

	syncDTO := SyncDTO{Status: SyncStatusFresh}
	result, synced, err := h.selector.Select(r.Context(), clientID(r), d)
	switch {
	case errors.Is(err, service.ErrSuperseded):
		syncDTO = SyncDTO{Status: SyncStatusSuperseded}
	case err != nil:
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("refresh month", "month", month.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh month", err)
		return
	case synced:
		syncDTO = toSyncDTO(result)
	}

	rng := h.service.Range(d)
	entries, err := h.monthEntries(r.Context(), bucket, rng)
	if err != nil {
		h.logger.Error("list month entries", "month", month.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read entries", err)
		return
	}

	resp := MonthResponse{
		Month:   month.String(),
		Start:   calendar.FormatDate(rng.Start),
		End:     calendar.FormatDate(rng.End),
		State:   StateSuccess,
		Entries: entries,
		Sync:    syncDTO,
	}
	if len(entries) == 0 {
		resp.State = StateEmpty
	}

	bounds := h.service.Bounds()
	if prev, ok := bounds.Prev(month); ok {
		s := prev.String()
		resp.Prev = &s
	}
	if next, ok := bounds.Next(month); ok {
		s := next.String()
		resp.Next = &s
	}

	writeJSON(w, http.StatusOK, resp)
}

// SyncMonth synchronizes the month regardless of its freshness.
func (h *Handler) SyncMonth(w http.ResponseWriter, r *http.Request) {
	month, d, ok := h.resolveMonth(w, r)
	if !ok {
		return
	}

	result, err := h.service.Synchronize(r.Context(), d)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("sync month", "month", month.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sync month", err)
		return
	}

	rng := h.service.Range(d)
	writeJSON(w, http.StatusOK, SyncResponse{
		Month: month.String(),
		Start: calendar.FormatDate(rng.Start),
		End:   calendar.FormatDate(rng.End),
		Sync:  toSyncDTO(result),
	})
}

func (h *Handler) GetMonthStatus(w http.ResponseWriter, r *http.Request) {
	month, d, ok := h.resolveMonth(w, r)
	if !ok {
		return
	}

	record, err := h.freshness.Get(r.Context(), month.BucketID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read freshness", err)
		return
	}
	needs, err := h.service.NeedsUpdate(r.Context(), d)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to evaluate freshness", err)
		return
	}

	resp := StatusResponse{
		Month:       month.String(),
		BucketID:    month.BucketID(),
		NeedsUpdate: needs,
	}
	if record != nil {
		resp.Synced = true
		resp.Timestamp = record.Timestamp
		if record.Timestamp != 0 {
			t := record.Time().UTC()
			resp.UpdatedAt = &t
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	loc := h.service.Bounds().Today.Location()
	date, err := calendar.ParseDate(chi.URLParam(r, "date"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", err)
		return
	}

	entry, err := h.entries.Get(r.Context(), date)
	if errors.Is(err, domain.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "entry not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read entry", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// resolveMonth parses the {month} parameter into the month and its selected date.
func (h *Handler) resolveMonth(w http.ResponseWriter, r *http.Request) (calendar.Month, time.Time, bool) {
	param := chi.URLParam(r, "month")
	month := calendar.MonthOf(h.service.Bounds().Today)
	if param != "current" {
		m, err := calendar.ParseMonth(param)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month, expected YYYY-MM or current", err)
			return calendar.Month{}, time.Time{}, false
		}
		month = m
	}

	d, err := h.service.SelectMonth(month)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "month outside the archive", err)
		return calendar.Month{}, time.Time{}, false
	}
	return month, d, true
}

// monthEntries reads the range through the cache. The freshness timestamp is
// read before the entries, so a sync committing in between leaves a value
// that already misses on the next read.
func (h *Handler) monthEntries(ctx context.Context, bucket string, rng calendar.Range) ([]EntryDTO, error) {
	version := int64(-1)
	record, err := h.freshness.Get(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if record != nil {
		version = record.Timestamp
	}

	if cached, ok := h.cache.Get(bucket, rng, version); ok {
		h.metrics.IncCacheHit()
		return cached, nil
	}
	h.metrics.IncCacheMiss()

	entries, err := h.entries.ListRange(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	dtos := toEntryDTOs(entries)
	h.cache.Set(bucket, rng, version, dtos)
	return dtos, nil
}

func toSyncDTO(result domain.SyncResult) SyncDTO {
	switch res := result.(type) {
	case domain.SyncSuccess:
		return SyncDTO{Status: domain.SyncStatusSuccess, Fetched: &res.Fetched, Stored: &res.Stored}
	case domain.SyncFailure:
		return SyncDTO{Status: domain.SyncStatusError, Kind: res.Kind, Message: res.Message}
	default:
		return SyncDTO{Status: SyncStatusFresh}
	}
}

// clientID falls back to the request id, so anonymous callers never
// supersede each other.
func clientID(r *http.Request) string {
	if id := r.Header.Get(ClientIDHeader); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
