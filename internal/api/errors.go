package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthRejected means the backend refused the bearer token (invalid or expired).
var ErrAuthRejected = errors.New("session expired, please log in again")

// ErrNoToken is returned by authenticated calls made without a token.
var ErrNoToken = errors.New("not logged in")

// NetworkError wraps a transport failure or timeout
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s: request timed out", e.Op)
	}
	return fmt.Sprintf("%s: failed to connect: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a client-side check that failed before any request was sent
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ServerError is a response the backend rejected: a non-2xx status, or a
// 2xx body carrying {"success": false}.
type ServerError struct {
	Status  int
	Message string

	// set when a request carrying a bearer token got 401
	rejected bool
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error: %s", http.StatusText(e.Status))
}

// Is lets errors.Is(err, ErrAuthRejected) match 401 responses to
// authenticated requests. A 401 from login is a credential error instead.
func (e *ServerError) Is(target error) bool {
	return target == ErrAuthRejected && e.rejected
}

// IsNetwork reports whether err is a transport failure
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Message returns the user-visible text for err, the way the form pages
// rendered it in their error banner.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAuthRejected) {
		return ErrAuthRejected.Error()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.Error()
	}
	if IsNetwork(err) {
		return "An error occurred. Please try again."
	}
	return err.Error()
}
