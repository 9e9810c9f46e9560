package strava

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrorKind classifies a remote API failure. The client never retries;
// the orchestrator decides what each kind means for the batch.
type ErrorKind int

const (
	// KindUnauthorized means the access token was rejected.
	KindUnauthorized ErrorKind = iota
	// KindRateLimited means the API asked us to back off.
	KindRateLimited
	// KindTransient covers server-side hiccups worth retrying on the
	// next scheduled run.
	KindTransient
	// KindTerminal covers everything else, e.g. revoked authorization
	// or malformed requests; operators should prompt re-authentication.
	KindTerminal
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "terminal"
	}
}

// APIError is a classified non-2xx response from the remote platform.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Operation  string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava %s failed: %s (status %d)", e.Operation, e.Kind, e.StatusCode)
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindTerminal
	}
}

func newAPIError(operation string, status int, body string) *APIError {
	return &APIError{
		Kind:       classifyStatus(status),
		StatusCode: status,
		Operation:  operation,
		Body:       body,
	}
}

// wrapOAuthError translates oauth2 transport failures into classified
// API errors. Network-level failures without a response are transient.
func wrapOAuthError(operation string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return newAPIError(operation, status, string(retrieveErr.Body))
	}
	return &APIError{
		Kind:      KindTransient,
		Operation: operation,
		Body:      err.Error(),
	}
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
