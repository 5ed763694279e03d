package adkchat

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSessionNotFound is returned when a session does not exist.
	// This is a normal, expected result; callers branch on it explicitly
	// rather than treating it as a failure.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoSession is returned when an operation needs an active session
	// and none is set
	ErrNoSession = errors.New("no session loaded")

	// ErrRemote is returned when the agent service answered with a failure
	// status other than 404
	ErrRemote = errors.New("agent service returned an error")

	// ErrMalformedResponse is returned when the agent service answered with
	// an unexpected content type or an unparseable body
	ErrMalformedResponse = errors.New("malformed response from agent service")

	// ErrNetwork is returned when no response was obtained at all
	ErrNetwork = errors.New("agent service unreachable")
)

// ClientError wraps an error with the operation and session it belongs to
type ClientError struct {
	Op        string // Operation that failed
	SessionID string // Session ID if applicable
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError
func NewClientError(op string, err error) *ClientError {
	return &ClientError{
		Op:  op,
		Err: err,
	}
}

// NewClientErrorWithSession creates a new ClientError with session ID
func NewClientErrorWithSession(op string, sessionID string, err error) *ClientError {
	return &ClientError{
		Op:        op,
		SessionID: sessionID,
		Err:       err,
	}
}
