package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds recorded in the crawl state. Per-page
// errors (navigation, auth, HTTP status, download) are caught at the fetch
// boundary and do not stop the run; ErrStateIO and ErrScrapeTooSmall are
// process-level.
var (
	ErrMalformedURL      = errors.New("malformed url")
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrLoginFormNotFound = errors.New("login form not found")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrDownloadFailed    = errors.New("download failed")
	ErrStateIO           = errors.New("state file unusable")
	ErrScrapeTooSmall    = errors.New("scrape produced too few files")
)

// HTTPError marks a page that answered with a non-success status. The page is
// recorded as failed and not retried within the run.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

// FailureKind maps an error to the errorKind string stored in FailureRecord.
func FailureKind(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return fmt.Sprintf("HttpError(%d)", httpErr.Status)
	case errors.Is(err, ErrMalformedURL):
		return "MalformedUrl"
	case errors.Is(err, ErrLoginFormNotFound):
		return "LoginFormNotFound"
	case errors.Is(err, ErrAuthFailed):
		return "AuthFailed"
	case errors.Is(err, ErrNavigationTimeout):
		return "NavigationTimeout"
	case errors.Is(err, ErrDownloadFailed):
		return "DownloadFailed"
	default:
		return "Error"
	}
}
