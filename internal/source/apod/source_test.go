package apod

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"apod_syncer/internal/domain"
)

type SourceTestSuite struct {
	suite.Suite
	logger *slog.Logger
	start  time.Time
	end    time.Time
}

func (s *SourceTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.start = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	s.end = time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
}

func TestSourceTestSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func (s *SourceTestSuite) newSource(url string, attempts int) *Source {
	return New(Config{
		BaseURL:        url,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Location:       time.UTC,
	}, s.logger)
}

func (s *SourceTestSuite) TestFetchRange_Success() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.Equal("test-key", q.Get("api_key"))
		s.Equal("2024-03-01", q.Get("start_date"))
		s.Equal("2024-03-31", q.Get("end_date"))
		s.Equal("true", q.Get("thumbs"))
		s.Equal("application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date":"2024-03-01","title":"Galaxy","explanation":"A galaxy.","url":"https://apod.nasa.gov/a.jpg","hdurl":"https://apod.nasa.gov/a_hd.jpg","media_type":"image","copyright":"Someone","service_version":"v1"},
			{"date":"2024-03-02","title":"Launch","explanation":"A video.","url":"https://youtube.com/x","thumbnail_url":"https://img.youtube.com/x.jpg","media_type":"video","service_version":"v1"},
			{"date":"not-a-date","title":"Broken","media_type":"image"}
		]`))
	}))
	defer srv.Close()

	entries, err := s.newSource(srv.URL, 1).FetchRange(context.Background(), s.start, s.end, true)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Equal(s.start, entries[0].Date)
	s.Equal("Galaxy", entries[0].Title)
	s.Equal(domain.MediaTypeImage, entries[0].MediaType)
	s.Require().NotNil(entries[0].HDURL)
	s.Equal("https://apod.nasa.gov/a_hd.jpg", *entries[0].HDURL)
	s.Require().NotNil(entries[0].Copyright)
	s.Nil(entries[0].ThumbnailURL)

	s.Equal(domain.MediaTypeVideo, entries[1].MediaType)
	s.Require().NotNil(entries[1].ThumbnailURL)
	s.Equal("https://img.youtube.com/x.jpg", *entries[1].ThumbnailURL)
}

func (s *SourceTestSuite) TestFetchRange_ThumbsFalse() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("false", r.URL.Query().Get("thumbs"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	entries, err := s.newSource(srv.URL, 1).FetchRange(context.Background(), s.start, s.end, false)
	s.NoError(err)
	s.Empty(entries)
}

func (s *SourceTestSuite) TestFetchRange_ClientError() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST","message":"Date must be between Jun 16, 1995 and Mar 17, 2024."}}`))
	}))
	defer srv.Close()

	_, err := s.newSource(srv.URL, 3).FetchRange(context.Background(), s.start, s.end, true)

	var remote *domain.RemoteError
	s.Require().True(errors.As(err, &remote))
	s.Equal(domain.ErrorKindClientRequest, remote.Kind)
	s.Equal(http.StatusBadRequest, remote.StatusCode)
	s.Equal("BAD_REQUEST: Date must be between Jun 16, 1995 and Mar 17, 2024.", remote.Message)
}

func (s *SourceTestSuite) TestFetchRange_ServerError() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":500,"msg":"Internal Service Error","service_version":"v1"}`))
	}))
	defer srv.Close()

	_, err := s.newSource(srv.URL, 3).FetchRange(context.Background(), s.start, s.end, true)

	var remote *domain.RemoteError
	s.Require().True(errors.As(err, &remote))
	s.Equal(domain.ErrorKindServer, remote.Kind)
	s.Equal("Internal Service Error", remote.Message)
	s.Equal(int32(1), calls.Load(), "server errors are not retried by the source")
}

func (s *SourceTestSuite) TestFetchRange_ServerErrorUndecodableBody() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := s.newSource(srv.URL, 1).FetchRange(context.Background(), s.start, s.end, true)

	var remote *domain.RemoteError
	s.Require().True(errors.As(err, &remote))
	s.Equal(domain.ErrorKindServer, remote.Kind)
	s.Equal(http.StatusText(http.StatusBadGateway), remote.Message)
}

func (s *SourceTestSuite) TestFetchRange_MalformedSuccessBody() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := s.newSource(srv.URL, 1).FetchRange(context.Background(), s.start, s.end, true)

	var remote *domain.RemoteError
	s.Require().True(errors.As(err, &remote))
	s.Equal(domain.ErrorKindUnknown, remote.Kind)
}

func (s *SourceTestSuite) TestFetchRange_NetworkErrorRetried() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := s.newSource(url, 2).FetchRange(context.Background(), s.start, s.end, true)

	var remote *domain.RemoteError
	s.Require().True(errors.As(err, &remote))
	s.Equal(domain.ErrorKindNetwork, remote.Kind)
	s.Zero(remote.StatusCode)
}

func (s *SourceTestSuite) TestFetchRange_Canceled() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.newSource(srv.URL, 1).FetchRange(ctx, s.start, s.end, true)
	s.ErrorIs(err, context.Canceled)

	var remote *domain.RemoteError
	s.False(errors.As(err, &remote))
}
