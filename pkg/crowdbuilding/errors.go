package crowdbuilding

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. APIError unwraps to one of these so callers can match
// with errors.Is without caring about exact status codes. A 403 (member is
// authenticated but not allowed, e.g. not a group member) is deliberately
// distinct from a 401/missing token.
var (
	ErrAuthRequired     = errors.New("auth required")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrServer           = errors.New("server error")
)

// APIError wraps a non-2xx response from the CrowdBuilding API.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crowdbuilding: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("crowdbuilding: status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == 401:
		return ErrAuthRequired
	case e.StatusCode == 403:
		return ErrPermissionDenied
	case e.StatusCode == 404:
		return ErrNotFound
	case e.StatusCode == 422:
		return ErrValidation
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}
