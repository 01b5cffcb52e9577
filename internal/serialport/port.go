// Package serialport provides skyra.Transport implementations backed by real
// serial ports.
package serialport

import (
	"io"
	"time"
)

// SerialPorter is the minimal interface needed from an opened serial port.
// It allows the line framing to be tested without hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter is implemented by ports whose read timeout can be
// changed after opening.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// InputResetter is implemented by ports that can discard pending input.
type InputResetter interface {
	ResetInputBuffer() error
}

// pollInterval bounds a single blocking Read so that the overall line
// timeout can be enforced by LineTransport.
const pollInterval = 50 * time.Millisecond
