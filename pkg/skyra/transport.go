package skyra

import "time"

// Link parameters used for every box.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 5 * time.Second
)

// Transport is a byte link to one laser box.
//
// ReadLine blocks until a full line terminated by '\n' has been received and
// returns it including its terminator. If no complete line arrives within the
// timeout fixed at open time it returns an error wrapping ErrTimeout.
// Buffered reports how many received bytes have not been consumed yet,
// including bytes still pending on the link.
type Transport interface {
	Write(p []byte) (int, error)
	ReadLine() ([]byte, error)
	Buffered() int
	Close() error
}

// Opener opens a Transport on a named port.
type Opener interface {
	Open(port string, baud int, timeout time.Duration) (Transport, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(port string, baud int, timeout time.Duration) (Transport, error)

// Open calls f.
func (f OpenerFunc) Open(port string, baud int, timeout time.Duration) (Transport, error) {
	return f(port, baud, timeout)
}
