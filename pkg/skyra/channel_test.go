package skyra

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport answers each write with the next scripted line.
type scriptedTransport struct {
	written  []string
	lines    []string
	leftover int
	// trailing is added to leftover once a line has been read
	trailing int
	writeErr error
	readErr  error
	closed   bool
}

func (t *scriptedTransport) Write(p []byte) (int, error) {
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.written = append(t.written, string(p))
	return len(p), nil
}

func (t *scriptedTransport) ReadLine() ([]byte, error) {
	if t.readErr != nil {
		return nil, t.readErr
	}
	if len(t.lines) == 0 {
		return nil, fmt.Errorf("scripted: %w", ErrTimeout)
	}
	line := t.lines[0]
	t.lines = t.lines[1:]
	t.leftover += t.trailing
	return []byte(line), nil
}

func (t *scriptedTransport) Buffered() int { return t.leftover }

func (t *scriptedTransport) Close() error {
	t.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestCommandChannelSend(t *testing.T) {
	tr := &scriptedTransport{lines: []string{"28288\r\n"}}
	ch := NewCommandChannel(tr, testLogger(), true)

	reply, err := ch.Send("sn?")
	require.NoError(t, err)
	assert.Equal(t, "28288", reply)
	assert.Equal(t, []string{"sn?\r"}, tr.written)
}

func TestCommandChannelSendErrors(t *testing.T) {
	tests := []struct {
		name      string
		transport *scriptedTransport
		command   string
		want      error
		noWrite   bool
	}{
		{
			name:      "syntax error reply",
			transport: &scriptedTransport{lines: []string{SyntaxErrorReply + "\r\n"}},
			command:   "1xyz?",
			want:      ErrIllegalCommand,
		},
		{
			name:      "no reply",
			transport: &scriptedTransport{},
			command:   "sn?",
			want:      ErrTimeout,
		},
		{
			name:      "bytes after reply",
			transport: &scriptedTransport{lines: []string{"0\r\n"}, trailing: 3},
			command:   "1l?",
			want:      ErrProtocolDesync,
		},
		{
			name:      "bytes before command",
			transport: &scriptedTransport{lines: []string{"0\r\n"}, leftover: 3},
			command:   "1l?",
			want:      ErrProtocolDesync,
			noWrite:   true,
		},
		{
			name:      "write failure",
			transport: &scriptedTransport{writeErr: errors.New("device gone")},
			command:   "sn?",
			want:      ErrConnection,
		},
		{
			name:      "read failure",
			transport: &scriptedTransport{readErr: io.ErrUnexpectedEOF},
			command:   "sn?",
			want:      ErrConnection,
		},
		{
			name:      "empty command",
			transport: &scriptedTransport{},
			command:   "",
			want:      ErrMalformedCommand,
			noWrite:   true,
		},
		{
			name:      "embedded terminator",
			transport: &scriptedTransport{},
			command:   "1l1\r1l0",
			want:      ErrMalformedCommand,
			noWrite:   true,
		},
		{
			name:      "non ascii",
			transport: &scriptedTransport{},
			command:   "1p 0.05µ",
			want:      ErrMalformedCommand,
			noWrite:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewCommandChannel(tt.transport, testLogger(), false)
			_, err := ch.Send(tt.command)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cmdErr *CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, tt.command, cmdErr.Command)
			if tt.noWrite {
				assert.Empty(t, tt.transport.written)
			}
		})
	}
}

func TestCommandChannelIllegalCommandCarriesCommand(t *testing.T) {
	tr := &scriptedTransport{lines: []string{SyntaxErrorReply + "\r\n"}}
	ch := NewCommandChannel(tr, nil, false)

	_, err := ch.Send("9glw?")
	require.ErrorIs(t, err, ErrIllegalCommand)
	assert.Contains(t, err.Error(), "9glw?")
}

func TestCommandChannelStripsTerminators(t *testing.T) {
	for _, line := range []string{"OK\r\n", "OK\n", "\r\nOK\r\n"} {
		tr := &scriptedTransport{lines: []string{line}}
		reply, err := NewCommandChannel(tr, nil, false).Send("1l1")
		require.NoError(t, err)
		assert.Equal(t, "OK", reply, "line %q", line)
	}
}
