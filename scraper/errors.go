package scraper

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure, including a
// refused or unreachable proxy.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrBadStatus indicates a non-200 response from the vendor endpoint.
type ErrBadStatus struct {
	Status int
	Err    error
}

func (e ErrBadStatus) Error() string {
	return fmt.Sprintf("bad status %d: %v", e.Status, e.Err)
}

func (e ErrBadStatus) Unwrap() error {
	return e.Err
}

// ErrMalformedPage indicates a response body with no embedded JSON
// search result.
type ErrMalformedPage struct {
	Err error
}

func (e ErrMalformedPage) Error() string {
	return fmt.Errorf("malformed page: %w", e.Err).Error()
}

func (e ErrMalformedPage) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var status ErrBadStatus
	if errors.As(err, &status) {
		return "bad_status"
	}
	var malformed ErrMalformedPage
	if errors.As(err, &malformed) {
		return "malformed"
	}
	return "other"
}
