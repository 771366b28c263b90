package ilp3

import (
	"fmt"

	"github.com/pkg/errors"
)

// Reasons carried by AuthError. They never reach the wire.
var (
	ErrMissingToken      = errors.New("missing token")
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrExpired           = errors.New("expired")
	ErrUnsupportedCaveat = errors.New("unsupported caveat")
)

// AuthError is any token verification failure.
type AuthError struct {
	Reason error
}

func (e *AuthError) Error() string {
	if e.Reason == nil {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason.Error()
}

func (e *AuthError) Unwrap() error { return e.Reason }
func (e *AuthError) Cause() error  { return e.Reason }

// Unauthorized wraps reason into an AuthError.
func Unauthorized(reason error) error {
	return &AuthError{Reason: reason}
}

// TransportError is a failure to complete the HTTP exchange at all. The
// caller may retry; this package never does.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Cause() error  { return e.Err }

// RemoteError is a non-2xx response.
type RemoteError struct {
	StatusCode int
	StatusText string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("error sending transfer: %d %s", e.StatusCode, e.StatusText)
}

// PayloadLimitError is returned when a buffered body exceeds its limit.
type PayloadLimitError struct {
	Limit int64
}

func (e *PayloadLimitError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

// ProtocolShapeError reports a missing or malformed ILP header.
type ProtocolShapeError struct {
	Header string
	Reason string
}

func (e *ProtocolShapeError) Error() string {
	return fmt.Sprintf("%s header %s", e.Header, e.Reason)
}

// IsAuthError reports whether err is, or wraps, an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}
