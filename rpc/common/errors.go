package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrReconnectInProgress is returned when another caller is currently dialing
	// and the client is configured to fail fast instead of waiting for it
	ErrReconnectInProgress = errors.New("connection attempt already in progress")

	// ErrTransportClosed is returned by a client transport after Close
	ErrTransportClosed = errors.New("transport is closed")

	// ErrNotConnected is returned if a transport is used before Connect
	ErrNotConnected = errors.New("transport is not connected")

	// ErrFrameTooLarge is returned if a frame exceeds the configured maximum size
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// --------------------------------------------------------------------------
// Error Types
// --------------------------------------------------------------------------

// DialError is returned if the underlying connection could not be established
type DialError struct {
	Endpoint string
	Err      error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Endpoint, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// TransportError is returned if a write or read on an established connection failed.
// Op is one of "probe", "write" or "read".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned if a response did not parse as a valid response
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ServerError carries an application level error reported by the remote server.
// It is a definitive answer and is never retried.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("theater server error: %s", e.Message)
}

// AttemptsExhaustedError is the terminal error of a send after all attempts failed
type AttemptsExhaustedError struct {
	Attempts int
	Last     error
}

func (e *AttemptsExhaustedError) Error() string {
	var dialErr *DialError
	if errors.As(e.Last, &dialErr) || errors.Is(e.Last, ErrReconnectInProgress) {
		return fmt.Sprintf("could not establish connection after %d attempts: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("failed to send command after %d attempts: %v", e.Attempts, e.Last)
}

func (e *AttemptsExhaustedError) Unwrap() error { return e.Last }

// IsRetryable reports whether err is a transport class error that the retry loop
// should handle by trying again
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		dialErr      *DialError
		transportErr *TransportError
		decodeErr    *DecodeError
	)
	return errors.As(err, &dialErr) ||
		errors.As(err, &transportErr) ||
		errors.As(err, &decodeErr) ||
		errors.Is(err, ErrReconnectInProgress)
}
