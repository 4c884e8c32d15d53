package client

import (
	"fmt"
	"net/http"
)

const (
	httpFailureMessage       = "Failed to fetch calendar events due to HTTP error: "
	unexpectedFailureMessage = "Unexpected error occurred while fetching calendar events"
)

// FetchError is returned by FetchEvents for every failure. Its message is
// safe to show to end users; the cause is available through Unwrap.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TransportError is a non-2xx response.
type TransportError struct {
	StatusCode int
	Body       string
}

// StatusText renders the status as "<code> <reason>".
func (e *TransportError) StatusText() string {
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *TransportError) Error() string {
	return "HTTP " + e.StatusText()
}

// DecodeError means a 2xx body was not a valid event list.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConnectionError represents a connection failure.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func newFetchError(err error) *FetchError {
	if te, ok := err.(*TransportError); ok {
		return &FetchError{Message: httpFailureMessage + te.StatusText(), Err: te}
	}
	return &FetchError{Message: unexpectedFailureMessage, Err: err}
}
