package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMonthOutOfRange = errors.New("month out of range")
	ErrEntryNotFound   = errors.New("entry not found")
)

type ErrorKind string

const (
	ErrorKindClientRequest ErrorKind = "client_request_error"
	ErrorKindServer        ErrorKind = "server_error"
	ErrorKindNetwork       ErrorKind = "network_error"
	ErrorKindUnknown       ErrorKind = "unknown_error"
)

// RemoteError is a classified failure of the remote source.
type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// SyncResult is the outcome of a synchronization attempt.
// It is either SyncSuccess or SyncFailure.
type SyncResult interface {
	isSyncResult()
}

type SyncSuccess struct {
	Fetched int
	Stored  int
}

type SyncFailure struct {
	Kind    ErrorKind
	Message string
}

func (SyncSuccess) isSyncResult() {}
func (SyncFailure) isSyncResult() {}

const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncEvent is emitted after every completed synchronization.
type SyncEvent struct {
	ID        string    `json:"id"`
	BucketID  string    `json:"bucket_id"`
	Start     string    `json:"start_date"`
	End       string    `json:"end_date"`
	Status    string    `json:"status"`
	Kind      ErrorKind `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Fetched   int       `json:"fetched"`
	Stored    int       `json:"stored"`
	Timestamp time.Time `json:"timestamp"`
}
