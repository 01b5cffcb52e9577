// Package errors defines the daemon-level error kinds used to map failures
// from laser boxes onto socket and HTTP responses.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned when a requested box or channel doesn't exist
var ErrNotFound = errors.New("resource not found")

// ErrInvalidInput is returned when the provided input is invalid
var ErrInvalidInput = errors.New("invalid input")

// ErrDeviceUnavailable is returned when a box can't be reached or is not responding
var ErrDeviceUnavailable = errors.New("device unavailable")

// ErrSafety is returned when a box refused to reach or confirm a requested
// state, or failed an identity or interlock check.
var ErrSafety = errors.New("safety check failed")

// ErrInternal is returned for unexpected internal errors
var ErrInternal = errors.New("internal error")

// LogErrorAndReturn logs an error with structured context and returns it
func LogErrorAndReturn(logger *slog.Logger, err error, message string, args ...any) error {
	if err == nil {
		return nil
	}
	logger.Error(message, append([]any{"error", err}, args...)...)
	return err
}

// WithKind attaches one of the sentinel kinds to err, keeping err in the chain.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", err, kind)
}

// IsNotFound returns true if the error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput returns true if the error is or wraps ErrInvalidInput
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDeviceUnavailable returns true if the error is or wraps ErrDeviceUnavailable
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}

// IsSafety returns true if the error is or wraps ErrSafety
func IsSafety(err error) bool {
	return errors.Is(err, ErrSafety)
}

// NotFoundf returns a formatted ErrNotFound error
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// InvalidInputf returns a formatted ErrInvalidInput error
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

// DeviceUnavailablef returns a formatted ErrDeviceUnavailable error
func DeviceUnavailablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrDeviceUnavailable)...)
}

// Safetyf returns a formatted ErrSafety error
func Safetyf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrSafety)...)
}

// Internalf returns a formatted ErrInternal error
func Internalf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInternal)...)
}

// Kind names used on the unix socket, where errors travel as strings.
const (
	KindNotFound          = "not_found"
	KindInvalidInput      = "invalid_input"
	KindSafety            = "safety"
	KindDeviceUnavailable = "device_unavailable"
	KindTimeout           = "timeout"
	KindInternal          = "internal"
)

// Kind returns the kind name for err.
func Kind(err error) string {
	switch {
	case IsNotFound(err):
		return KindNotFound
	case IsInvalidInput(err):
		return KindInvalidInput
	case IsSafety(err):
		return KindSafety
	case IsDeviceUnavailable(err):
		return KindDeviceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	default:
		return KindInternal
	}
}

type remoteError struct {
	msg  string
	kind error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.kind }

// FromKind rebuilds an error received over the socket. The message is kept
// as sent and the sentinel for kind is placed in the chain.
func FromKind(kind, message string) error {
	var sentinel error
	switch kind {
	case KindNotFound:
		sentinel = ErrNotFound
	case KindInvalidInput:
		sentinel = ErrInvalidInput
	case KindSafety:
		sentinel = ErrSafety
	case KindDeviceUnavailable:
		sentinel = ErrDeviceUnavailable
	case KindTimeout:
		sentinel = context.DeadlineExceeded
	default:
		sentinel = ErrInternal
	}
	return &remoteError{msg: message, kind: sentinel}
}
