package xerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common reusable client errors
var (
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrSessionExpired     = errors.New("session expired or invalid")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoTempToken        = errors.New("no pending two-factor challenge")
	ErrUnexpectedResponse = errors.New("unexpected response from server")
	ErrTransport          = errors.New("transport failure")
	ErrSessionSuperseded  = errors.New("session changed while request was in flight")
	ErrInvalidInput       = errors.New("invalid input")
)

// APIError is a non-success response from the remote API.
type APIError struct {
	Status int
	Method string
	Path   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Is reports 401 and 403 responses as ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// AsAPIError returns the APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// MessageOrDefault returns the server detail when err carries one, err.Error()
// otherwise, or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if apiErr, ok := AsAPIError(err); ok && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
