package daemon

import (
	"errors"
	"fmt"
)

// ErrCommunication matches every failure to reach the daemon at all, as
// opposed to the daemon answering with an error.
var ErrCommunication = errors.New("daemon unreachable")

// CommunicationError wraps a transport failure for one request.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrCommunication, e.Err)
}

func (e *CommunicationError) Unwrap() []error {
	return []error{ErrCommunication, e.Err}
}

// APIError is returned when the daemon answers with an HTTP error status.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Message)
}
