package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMailbox is returned by inbox operations before an address exists.
	ErrNoMailbox = errors.New("no mailbox generated yet")
	// ErrSourceUnsupported is returned when the active provider cannot
	// return raw message sources.
	ErrSourceUnsupported = errors.New("provider does not expose raw message sources")
)

// FallbackError is returned when the active provider refused generation
// with HTTP 403 and the alternate provider failed as well.
type FallbackError struct {
	Primary     string
	Fallback    string
	PrimaryErr  error
	FallbackErr error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s refused (%v); fallback to %s also failed: %v",
		e.Primary, e.PrimaryErr, e.Fallback, e.FallbackErr)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}
