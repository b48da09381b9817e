package sources

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when a source URL has no usable authority or
	// a YouTube URL carries no channel id.
	ErrInvalidURL = errors.New("invalid source url")

	// ErrInvalidSourceType is returned for types outside models.SourceTypes.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrChannelNotFound is returned when a YouTube channel cannot be resolved.
	ErrChannelNotFound = errors.New("youtube channel not found")
)

// FetchError covers transport failures, timeouts and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a response body is not a readable feed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
