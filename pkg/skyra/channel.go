package skyra

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Wire framing.
const (
	// CommandTerminator ends every outgoing command.
	CommandTerminator = "\r"

	// SyntaxErrorReply is the exact reply the box sends for a command it rejects.
	SyntaxErrorReply = "Syntax error: illegal command"
)

// CommandChannel performs single command/reply exchanges over a Transport.
// It keeps no state besides the transport and is not safe for concurrent use.
type CommandChannel struct {
	transport Transport
	logger    *slog.Logger
	trace     bool
}

// NewCommandChannel wraps t. When trace is set every frame is logged at debug level.
func NewCommandChannel(t Transport, logger *slog.Logger, trace bool) *CommandChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandChannel{transport: t, logger: logger, trace: trace}
}

// Send writes command followed by the terminator, waits for exactly one reply
// line and returns it without its line terminator.
func (c *CommandChannel) Send(command string) (string, error) {
	if err := validateCommand(command); err != nil {
		return "", &CommandError{Command: command, Err: err}
	}

	if n := c.transport.Buffered(); n > 0 {
		return "", &CommandError{
			Command: command,
			Err:     fmt.Errorf("%w: %d unread bytes before command", ErrProtocolDesync, n),
		}
	}

	frame := []byte(command + CommandTerminator)
	if c.trace {
		c.logger.Debug("skyra: sending", "command", command, "frame", fmt.Sprintf("%q", frame))
	}
	if _, err := c.transport.Write(frame); err != nil {
		return "", &CommandError{Command: command, Err: fmt.Errorf("%w: write: %w", ErrConnection, err)}
	}

	line, err := c.transport.ReadLine()
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return "", &CommandError{Command: command, Err: ErrTimeout}
		}
		return "", &CommandError{Command: command, Err: fmt.Errorf("%w: read: %w", ErrConnection, err)}
	}
	reply := strings.Trim(string(line), "\r\n")

	if reply == SyntaxErrorReply {
		return "", &CommandError{Command: command, Reply: reply, Err: ErrIllegalCommand}
	}
	if n := c.transport.Buffered(); n > 0 {
		return "", &CommandError{
			Command: command,
			Reply:   reply,
			Err:     fmt.Errorf("%w: %d unread bytes after reply", ErrProtocolDesync, n),
		}
	}

	if c.trace {
		c.logger.Debug("skyra: received", "command", command, "reply", reply)
	}
	return reply, nil
}

func validateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("%w: empty", ErrMalformedCommand)
	}
	for i := 0; i < len(command); i++ {
		b := command[i]
		if b == '\r' || b == '\n' {
			return fmt.Errorf("%w: contains line terminator", ErrMalformedCommand)
		}
		if b > 0x7e || b < 0x20 {
			return fmt.Errorf("%w: non-printable or non-ASCII byte 0x%02x", ErrMalformedCommand, b)
		}
	}
	return nil
}
