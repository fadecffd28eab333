package natureremo

import (
	"errors"
	"fmt"
)

var ErrInvalidAuth = errors.New("invalid access token")

// APIError is returned when the cloud answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nature remo api: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

// NetworkError wraps transport failures, including timeouts.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("nature remo network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// DataShapeError reports an expected field or array missing from a payload.
type DataShapeError struct {
	Field string
	Cause error
}

func (e *DataShapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unexpected data shape at %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("unexpected data shape: missing %s", e.Field)
}

func (e *DataShapeError) Unwrap() error {
	return e.Cause
}
