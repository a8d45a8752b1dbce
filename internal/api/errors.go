package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrNetwork marks every failure to obtain a usable response: transport
	// errors, timeouts and non-2xx statuses.
	ErrNetwork = errors.New("network error")

	// ErrNoToken is returned by endpoints that need a bearer token when none
	// is configured.
	ErrNoToken = errors.New("no API token configured")

	ErrInvalidResponse = errors.New("invalid response body")
)

// StatusError is a non-2xx reply. Message comes from the {"error": ...} body
// when present.
type StatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
	RequestID  string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %s)", e.Code, msg, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, msg)
}

func (e *StatusError) Unwrap() error { return ErrNetwork }

// Unauthorized reports whether the reply asks for (re)authentication.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 reply.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(h string, now time.Time) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := t.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
