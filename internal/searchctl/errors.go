package searchctl

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleResponse marks a response for a superseded request. It is
	// logged and dropped, never shown.
	ErrStaleResponse = errors.New("stale search response")

	ErrInvalidPolicy = errors.New("empty query policy must be 'source' or 'none'")
)

// FetchError is a failed search, surfaced to the user once.
type FetchError struct {
	Query string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
