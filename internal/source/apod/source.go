package apod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"apod_syncer/internal/domain"
)

const (
	SourceID   = "apod"
	SourceName = "NASA Astronomy Picture of the Day"
)

// Config holds APOD source configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Location       *time.Location
}

// Source fetches entries from the APOD API.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	location       *time.Location
	logger         *slog.Logger
}

// New creates a new APOD source.
func New(cfg Config, logger *slog.Logger) *Source {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		location:       loc,
		logger:         logger.With("source", SourceID),
	}
}

func (s *Source) ID() string {
	return SourceID
}

func (s *Source) Name() string {
	return SourceName
}

// FetchRange fetches the entries published between start and end inclusive.
// Failures are returned as *domain.RemoteError, except context cancellation
// which is returned as the context error.
func (s *Source) FetchRange(ctx context.Context, start, end time.Time, thumbs bool) ([]domain.Entry, error) {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("start_date", start.Format(domain.DateLayout))
	q.Set("end_date", end.Format(domain.DateLayout))
	q.Set("thumbs", strconv.FormatBool(thumbs))
	reqURL := s.baseURL + "?" + q.Encode()

	var entries []APIEntry
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		entries, err = s.doRequest(ctx, reqURL)
		if err == nil {
			break
		}

		if !isRetryable(err) || attempt == s.maxAttempts {
			return nil, err
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	s.logger.Debug("fetched range",
		"start_date", start.Format(domain.DateLayout),
		"end_date", end.Format(domain.DateLayout),
		"thumbs", thumbs,
		"entries", len(entries),
	)

	return s.transform(entries), nil
}

func (s *Source) doRequest(ctx context.Context, reqURL string) ([]APIEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &domain.RemoteError{Kind: domain.ErrorKindUnknown, Message: err.Error(), Err: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "APODSyncer/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.RemoteError{Kind: domain.ErrorKindNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.RemoteError{Kind: domain.ErrorKindNetwork, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var entries []APIEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, &domain.RemoteError{
				Kind:       domain.ErrorKindUnknown,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("decode response: %v", err),
				Err:        err,
			}
		}
		return entries, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &domain.RemoteError{
			Kind:       domain.ErrorKindClientRequest,
			StatusCode: resp.StatusCode,
			Message:    clientErrorMessage(body, resp.StatusCode),
		}
	case resp.StatusCode >= 500:
		return nil, &domain.RemoteError{
			Kind:       domain.ErrorKindServer,
			StatusCode: resp.StatusCode,
			Message:    serverErrorMessage(body, resp.StatusCode),
		}
	default:
		return nil, &domain.RemoteError{
			Kind:       domain.ErrorKindUnknown,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %d", resp.StatusCode),
		}
	}
}

func clientErrorMessage(body []byte, status int) string {
	var e ClientErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return http.StatusText(status)
	}
	if e.Error.Code == "" {
		return e.Error.Message
	}
	return e.Error.Code + ": " + e.Error.Message
}

func serverErrorMessage(body []byte, status int) string {
	var e ServerErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Msg == "" {
		return http.StatusText(status)
	}
	return e.Msg
}

func isRetryable(err error) bool {
	var remote *domain.RemoteError
	return errors.As(err, &remote) && remote.Kind == domain.ErrorKindNetwork
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(items []APIEntry) []domain.Entry {
	entries := make([]domain.Entry, 0, len(items))

	for _, item := range items {
		date, err := time.ParseInLocation(domain.DateLayout, item.Date, s.location)
		if err != nil {
			s.logger.Warn("failed to parse date",
				"date", item.Date,
				"title", item.Title,
			)
			continue
		}

		entries = append(entries, domain.Entry{
			Date:           date,
			Title:          item.Title,
			Explanation:    item.Explanation,
			URL:            item.URL,
			HDURL:          item.HDURL,
			ThumbnailURL:   item.ThumbnailURL,
			MediaType:      item.MediaType,
			Copyright:      item.Copyright,
			ServiceVersion: item.ServiceVersion,
		})
	}

	return entries
}
