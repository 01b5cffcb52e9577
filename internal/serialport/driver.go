package serialport

import (
	"fmt"
	"strings"
	"time"

	tarm "github.com/tarm/serial"
	"go.bug.st/serial"

	"github.com/jmylchreest/skyrad/pkg/skyra"
	"github.com/jmylchreest/skyrad/pkg/skyra/skyratest"
)

// Driver selects the serial backend.
type Driver string

const (
	// DriverBugst uses go.bug.st/serial.
	DriverBugst Driver = "bugst"
	// DriverTarm uses github.com/tarm/serial.
	DriverTarm Driver = "tarm"
	// DriverSimulator uses an in-memory box that matches the configuration.
	DriverSimulator Driver = "simulator"
)

// ParseDriver validates a driver name. The empty string selects DriverBugst.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case "", DriverBugst:
		return DriverBugst, nil
	case DriverTarm:
		return DriverTarm, nil
	case DriverSimulator:
		return DriverSimulator, nil
	default:
		return "", fmt.Errorf("unknown serial driver %q: expected bugst, tarm or simulator", s)
	}
}

// Port openers, replaceable in tests.
var (
	openBugstPort = func(name string, mode *serial.Mode) (SerialPorter, error) {
		return serial.Open(name, mode)
	}
	openTarmPort = func(cfg *tarm.Config) (SerialPorter, error) {
		return tarm.OpenPort(cfg)
	}
)

// NewOpener returns the skyra.Opener for driver. cfg is only consulted by the
// simulator driver, which builds a box that passes cfg's handshake.
func NewOpener(driver Driver, opts PortOptions, cfg skyra.Config) (skyra.Opener, error) {
	switch driver {
	case "", DriverBugst:
		return skyra.OpenerFunc(func(port string, baud int, timeout time.Duration) (skyra.Transport, error) {
			return OpenBugst(port, withBaud(opts, baud), timeout)
		}), nil
	case DriverTarm:
		return skyra.OpenerFunc(func(port string, baud int, timeout time.Duration) (skyra.Transport, error) {
			return OpenTarm(port, withBaud(opts, baud), timeout)
		}), nil
	case DriverSimulator:
		return skyratest.FromConfig(cfg), nil
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}

func withBaud(opts PortOptions, baud int) PortOptions {
	if baud > 0 {
		opts.BaudRate = baud
	}
	return opts
}

// OpenBugst opens name with go.bug.st/serial.
func OpenBugst(name string, opts PortOptions, timeout time.Duration) (*LineTransport, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := openBugstPort(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if tp, ok := port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(pollInterval); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
	}
	if r, ok := port.(InputResetter); ok {
		// stale bytes from a previous session would desync the first exchange
		if err := r.ResetInputBuffer(); err != nil {
			port.Close()
			return nil, fmt.Errorf("reset input buffer on %s: %w", name, err)
		}
	}
	return NewLineTransport(port, timeout), nil
}

// OpenTarm opens name with github.com/tarm/serial.
func OpenTarm(name string, opts PortOptions, timeout time.Duration) (*LineTransport, error) {
	cfg, err := opts.TarmConfig(name, pollInterval)
	if err != nil {
		return nil, err
	}
	port, err := openTarmPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return NewLineTransport(port, timeout), nil
}
