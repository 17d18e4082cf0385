package domain

import "time"

// DateLayout is the wire and storage format of an entry date.
const DateLayout = "2006-01-02"

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type Entry struct {
	Date           time.Time
	Title          string
	Explanation    string
	URL            string
	HDURL          *string
	ThumbnailURL   *string
	MediaType      string
	Copyright      *string
	ServiceVersion *string
}

func (e Entry) IsImage() bool {
	return e.MediaType == MediaTypeImage
}

// FreshnessRecord is the last synchronization timestamp of a bucket.
// Timestamp is epoch milliseconds; 0 means the last attempt yielded nothing.
type FreshnessRecord struct {
	BucketID  string `db:"id"`
	Timestamp int64  `db:"updated_at"`
}

func (r *FreshnessRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}
