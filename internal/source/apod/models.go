package apod

// APIEntry is one element of the success response array.
type APIEntry struct {
	Date           string  `json:"date"`
	Title          string  `json:"title"`
	Explanation    string  `json:"explanation"`
	URL            string  `json:"url"`
	HDURL          *string `json:"hdurl"`
	ThumbnailURL   *string `json:"thumbnail_url"`
	MediaType      string  `json:"media_type"`
	Copyright      *string `json:"copyright"`
	ServiceVersion *string `json:"service_version"`
}

// ClientErrorResponse is the 4xx body.
type ClientErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ServerErrorResponse is the 5xx body.
type ServerErrorResponse struct {
	Code           int    `json:"code"`
	Msg            string `json:"msg"`
	ServiceVersion string `json:"service_version"`
}
