package service

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a user has never linked the external
// platform; there is nothing to refresh and nothing to sync.
var ErrNotConnected = errors.New("user has no connected strava credential")

// RefreshFailedError wraps a rejected token refresh. The stored
// credential is left untouched so the user can re-authenticate manually.
type RefreshFailedError struct {
	Cause error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Cause)
}

func (e *RefreshFailedError) Unwrap() error {
	return e.Cause
}
