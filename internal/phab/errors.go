package phab

import (
	"errors"
	"fmt"
)

// APIError is a Conduit failure: either a non-2xx HTTP status or an
// error_code in the response envelope.
type APIError struct {
	Method     string
	StatusCode int
	Code       string
	Info       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: conduit error %s: %s", e.Method, e.Code, e.Info)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Method, e.StatusCode, e.Info)
}

// IsInvalidAuth reports whether err is a Conduit authentication failure.
func IsInvalidAuth(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "ERR-INVALID-AUTH" || apiErr.Code == "ERR-INVALID-SESSION" || apiErr.StatusCode == 401
}
