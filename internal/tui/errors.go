package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/catalog"
	"github.com/pders01/profe/internal/searchctl"
	"github.com/pders01/profe/internal/validation"
)

// describeError turns an error into a short line for the status bar.
func describeError(err error) string {
	if err == nil {
		return ""
	}

	prefix := ""
	var fe *searchctl.FetchError
	if errors.As(err, &fe) {
		prefix = fmt.Sprintf("search %q: ", fe.Query)
	}

	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		switch {
		case se.Code == http.StatusTooManyRequests && se.RetryAfter > 0:
			return prefix + fmt.Sprintf("too many requests, retry in %s", se.RetryAfter)
		case se.Unauthorized():
			return prefix + "not authorized, set api.token"
		case se.Message != "":
			return prefix + se.Message
		default:
			return prefix + fmt.Sprintf("server returned %d", se.Code)
		}
	case errors.Is(err, context.DeadlineExceeded):
		return prefix + "request timed out"
	case errors.Is(err, api.ErrNoToken):
		return "notes need an API token (api.token or PROFE_API_TOKEN)"
	case errors.Is(err, catalog.ErrOfflineUnavailable):
		return "offline search is disabled"
	case errors.Is(err, validation.ErrLocalhost), errors.Is(err, validation.ErrPrivateIP):
		return "refusing to open a local attachment link"
	case api.IsNetwork(err):
		return prefix + "network error, check your connection"
	}
	return prefix + err.Error()
}
