package model

import (
	"errors"
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// TransportError reports that a mailbox or store could not be reached. It is
// the only failure allowed to abort a whole run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// FetchReason classifies a failed page fetch.
type FetchReason string

const (
	// FetchNotFound means the posting is confirmed gone upstream.
	FetchNotFound FetchReason = "NotFound"
	// FetchOther covers blocks, timeouts, auth walls and malformed responses.
	FetchOther FetchReason = "Other"
)

// FetchError is returned by page fetchers. Reason drives the lifecycle transition.
type FetchError struct {
	Reason     FetchReason
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s, HTTP %d): %v", e.URL, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReasonOf extracts the fetch classification from err. Errors that are not
// FetchErrors classify as FetchOther.
func ReasonOf(err error) FetchReason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return FetchOther
}

// ConflictError is returned by an offer backend that rejects a categorical
// value it does not know yet.
type ConflictError struct {
	Field Field
	Value string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("persistence conflict on %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// AsConflict returns the ConflictError wrapped in err, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

var (
	// ErrParserUnavailable is returned when no extractor is registered for a source.
	ErrParserUnavailable = errors.New("no parser registered for source")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)
