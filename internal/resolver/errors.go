package resolver

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoMatch is returned when no candidate survives scoring and overlap filters.
var ErrNoMatch = errors.New("no nutrition match")

// SourceError is returned when a source responds with a non-2xx status or
// cannot be reached.
type SourceError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s api: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a SourceError with HTTP 404.
func IsNotFound(err error) bool {
	var e *SourceError
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err is a SourceError with HTTP 429.
func IsRateLimited(err error) bool {
	var e *SourceError
	return errors.As(err, &e) && e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether err is a SourceError with HTTP 401 or 403,
// usually a missing or revoked API key.
func IsUnauthorized(err error) bool {
	var e *SourceError
	return errors.As(err, &e) && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
