package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse is returned when a provider answers with a payload
	// that does not have the documented shape.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrUnknownProvider is returned by registry lookups for unregistered names.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrStateMismatch is returned when an adapter receives another adapter's state.
	ErrStateMismatch = errors.New("mailbox state belongs to another provider")
)

// HTTPError is returned when a provider answers with a non-2xx status.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error (HTTP %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider, e.StatusCode, e.Body)
}

// NetworkError wraps transport-level failures such as refused connections
// and timeouts.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an
// HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsForbidden reports whether err (or any error in its chain) is an HTTP 403.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsNetwork reports whether err (or any error in its chain) is a NetworkError.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// Kind classifies err for display: "forbidden", "http", "network",
// "malformed" or "internal".
func Kind(err error) string {
	switch {
	case IsForbidden(err):
		return "forbidden"
	case StatusCode(err) != 0:
		return "http"
	case IsNetwork(err):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "internal"
	}
}

// TruncateBody shortens an error response body for inclusion in HTTPError.
func TruncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
