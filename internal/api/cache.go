package api

import (
	"log/slog"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/domain"
)

// MonthCache keeps the entries of recently served months keyed by bucket.
// A cached value is only valid for the exact range and freshness version it
// was read for: any completed sync of the bucket, from this process or not,
// changes the version and turns the value into a miss.
type MonthCache struct {
	cache  *freecache.Cache
	ttl    int
	logger *slog.Logger
}

type cachedMonth struct {
	Start   string     `json:"start"`
	End     string     `json:"end"`
	Version int64      `json:"version"`
	Entries []EntryDTO `json:"entries"`
}

// NewMonthCache returns nil when disabled; a nil cache never hits.
func NewMonthCache(enabled bool, sizeMB int, ttl time.Duration, logger *slog.Logger) *MonthCache {
	if !enabled || sizeMB <= 0 {
		logger.Info("month cache disabled")
		return nil
	}
	return &MonthCache{
		cache:  freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:    max(int(ttl.Seconds()), 1),
		logger: logger,
	}
}

func (c *MonthCache) Get(bucket string, r calendar.Range, version int64) ([]EntryDTO, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.cache.Get([]byte(bucket))
	if err != nil {
		return nil, false
	}

	var m cachedMonth
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	if m.Version != version || m.Start != calendar.FormatDate(r.Start) || m.End != calendar.FormatDate(r.End) {
		return nil, false
	}
	return m.Entries, true
}

func (c *MonthCache) Set(bucket string, r calendar.Range, version int64, entries []EntryDTO) {
	if c == nil {
		return
	}
	data, err := json.Marshal(cachedMonth{
		Start:   calendar.FormatDate(r.Start),
		End:     calendar.FormatDate(r.End),
		Version: version,
		Entries: entries,
	})
	if err != nil {
		c.logger.Debug("failed to encode cached month", "bucket", bucket, "error", err)
		return
	}
	if err := c.cache.Set([]byte(bucket), data, c.ttl); err != nil {
		c.logger.Debug("failed to cache month", "bucket", bucket, "size", len(data), "error", err)
	}
}

// EntryDTO is the wire form of a cached entry.
type EntryDTO struct {
	Date           string  `json:"date"`
	Title          string  `json:"title"`
	Explanation    string  `json:"explanation"`
	URL            string  `json:"url"`
	HDURL          *string `json:"hdurl,omitempty"`
	ThumbnailURL   *string `json:"thumbnail_url,omitempty"`
	MediaType      string  `json:"media_type"`
	Copyright      *string `json:"copyright,omitempty"`
	ServiceVersion *string `json:"service_version,omitempty"`
}

func toEntryDTO(e domain.Entry) EntryDTO {
	return EntryDTO{
		Date:           calendar.FormatDate(e.Date),
		Title:          e.Title,
		Explanation:    e.Explanation,
		URL:            e.URL,
		HDURL:          e.HDURL,
		ThumbnailURL:   e.ThumbnailURL,
		MediaType:      e.MediaType,
		Copyright:      e.Copyright,
		ServiceVersion: e.ServiceVersion,
	}
}

func toEntryDTOs(entries []domain.Entry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	return dtos
}
