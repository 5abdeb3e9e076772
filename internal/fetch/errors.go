package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetch client.
var (
	// ErrNotFound indicates the server answered 404 or 410.
	ErrNotFound = errors.New("page not found")

	// ErrRateLimited indicates the server answered 429.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrHTTP indicates any other non-success status.
	ErrHTTP = errors.New("http error")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error")

	// ErrTooLarge indicates the body exceeded the configured size cap.
	ErrTooLarge = errors.New("response body too large")
)

// StatusError carries the status of a failed request.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Unwrap maps the status onto the matching sentinel.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == 404 || e.StatusCode == 410:
		return ErrNotFound
	case e.StatusCode == 429:
		return ErrRateLimited
	default:
		return ErrHTTP
	}
}

// IsNotFound returns true if the error indicates a missing page.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
