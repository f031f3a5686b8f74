package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus is wrapped by every non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("decode response")
	// ErrRequest is returned when the request could not be sent.
	ErrRequest = errors.New("platform request")
)

// APIError describes a non-2xx answer from the platform.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s %d: %s", e.Op, ErrUnexpectedStatus, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %s %d", e.Op, ErrUnexpectedStatus, e.StatusCode)
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }
