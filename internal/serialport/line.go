package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// idleBackoff is slept after a Read that returned nothing, so ports that do
// not block on Read are not spun on.
const idleBackoff = 2 * time.Millisecond

// LineTransport frames a SerialPorter into '\n' terminated lines and
// implements skyra.Transport.
type LineTransport struct {
	mu      sync.Mutex
	port    SerialPorter
	timeout time.Duration
	buf     bytes.Buffer
	chunk   []byte
	now     func() time.Time
}

var _ skyra.Transport = (*LineTransport)(nil)

// NewLineTransport wraps port. timeout is the longest ReadLine waits for a
// complete line.
func NewLineTransport(port SerialPorter, timeout time.Duration) *LineTransport {
	if timeout <= 0 {
		timeout = skyra.DefaultReadTimeout
	}
	return &LineTransport{
		port:    port,
		timeout: timeout,
		chunk:   make([]byte, 256),
		now:     time.Now,
	}
}

// Write sends p in full.
func (l *LineTransport) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	written := 0
	for written < len(p) {
		n, err := l.port.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// ReadLine returns the next line including its '\n'. Bytes received after
// the line stay buffered and are reported by Buffered.
func (l *LineTransport) ReadLine() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	deadline := l.now().Add(l.timeout)
	for {
		if i := bytes.IndexByte(l.buf.Bytes(), '\n'); i >= 0 {
			line := make([]byte, i+1)
			_, _ = l.buf.Read(line)
			return line, nil
		}
		if !l.now().Before(deadline) {
			return nil, fmt.Errorf("serial: no complete line within %s (%d bytes pending): %w",
				l.timeout, l.buf.Len(), skyra.ErrTimeout)
		}

		n, err := l.port.Read(l.chunk)
		if n > 0 {
			l.buf.Write(l.chunk[:n])
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("serial: read: %w", err)
		}
		if n == 0 {
			time.Sleep(idleBackoff)
		}
	}
}

// Buffered returns the number of received bytes not yet returned by ReadLine.
// It first drains one read from the port so a line that arrived in a later
// read than the reply is counted too. That read waits at most the port's poll
// interval.
func (l *LineTransport) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	// a read error surfaces on the next ReadLine
	if n, _ := l.port.Read(l.chunk); n > 0 {
		l.buf.Write(l.chunk[:n])
	}
	return l.buf.Len()
}

// Close closes the underlying port.
func (l *LineTransport) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Reset()
	return l.port.Close()
}
