package skyra

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	// ErrConnection is returned when the transport could not be opened.
	ErrConnection = errors.New("connection failed")

	// ErrIdentityMismatch is returned when the box reports a different serial number.
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrInterlockDisengaged is returned when the key switch is off.
	ErrInterlockDisengaged = errors.New("key switch interlock disengaged")

	// ErrIllegalCommand is returned when the box answers with the syntax error reply.
	ErrIllegalCommand = errors.New("illegal command")

	// ErrTimeout is returned when no complete reply line arrived within the read timeout.
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrProtocolDesync is returned when unread bytes remain after a reply line.
	ErrProtocolDesync = errors.New("protocol desync")

	// ErrUnknownChannel is returned for channel names not in the registry.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrOutOfRange is returned for power requests outside [0, max].
	ErrOutOfRange = errors.New("value out of range")

	// ErrConfirmationFailure is returned when a read-back does not match what was set.
	ErrConfirmationFailure = errors.New("confirmation failed")

	// ErrClosed is returned for any operation on a closed controller.
	ErrClosed = errors.New("controller closed")

	// ErrMalformedCommand is returned for empty commands or commands containing line terminators.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrMalformedReply is returned when a reply cannot be parsed as the expected value.
	ErrMalformedReply = errors.New("malformed reply")

	// ErrInvalidConfig is returned when a controller configuration is unusable.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CommandError describes a failed command exchange.
type CommandError struct {
	Command string
	Reply   string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Reply != "" {
		return fmt.Sprintf("command %q: %v (reply %q)", e.Command, e.Err, e.Reply)
	}
	return fmt.Sprintf("command %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// HandshakeError identifies the startup step that failed.
// Step is the state the controller was in when the failure happened.
type HandshakeError struct {
	Step State
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed in state %s: %v", e.Step, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// ConfirmationError reports a read-after-write mismatch.
type ConfirmationError struct {
	Channel   string
	Property  PropertyName
	Requested any
	Confirmed any
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("channel %s: %s set to %v but device reports %v",
		e.Channel, e.Property, e.Requested, e.Confirmed)
}

func (e *ConfirmationError) Unwrap() error { return ErrConfirmationFailure }

// IsSafetyError reports whether err is one of the failures that indicate the
// box must not be driven: wrong identity, open interlock, or a set that did
// not take effect.
func IsSafetyError(err error) bool {
	return errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrInterlockDisengaged) ||
		errors.Is(err, ErrConfirmationFailure)
}
