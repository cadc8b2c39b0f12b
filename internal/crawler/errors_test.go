package crawler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailureKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"http error", &HTTPError{Status: 404}, "HttpError(404)"},
		{"wrapped http error", fmt.Errorf("fetch: %w", &HTTPError{Status: 503}), "HttpError(503)"},
		{"malformed url", ErrMalformedURL, "MalformedUrl"},
		{"login form not found", fmt.Errorf("auth: %w", ErrLoginFormNotFound), "LoginFormNotFound"},
		{"auth failed", ErrAuthFailed, "AuthFailed"},
		{"navigation timeout", ErrNavigationTimeout, "NavigationTimeout"},
		{"download failed", ErrDownloadFailed, "DownloadFailed"},
		{"anything else", errors.New("boom"), "Error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, FailureKind(tc.err))
		})
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	t.Parallel()

	err := &HTTPError{Status: 403}
	require.Equal(t, "http status 403", err.Error())
}
