package serialport

import (
	"fmt"
	"strings"
	"time"

	tarm "github.com/tarm/serial"
	"go.bug.st/serial"

	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// PortOptions describes the serial line parameters. The Skyra box uses
// 115200 8N1, which is what Normalize fills in.
type PortOptions struct {
	BaudRate int    `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits int    `json:"data_bits" mapstructure:"data_bits"`
	StopBits int    `json:"stop_bits" mapstructure:"stop_bits"`
	Parity   string `json:"parity" mapstructure:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = skyra.DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// TarmConfig converts the options into a github.com/tarm/serial config for
// the named port. readTimeout bounds each Read call.
func (o PortOptions) TarmConfig(name string, readTimeout time.Duration) (*tarm.Config, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	cfg := &tarm.Config{
		Name:        name,
		Baud:        opts.BaudRate,
		Size:        byte(opts.DataBits),
		ReadTimeout: readTimeout,
	}
	if opts.StopBits == 2 {
		cfg.StopBits = tarm.Stop2
	} else {
		cfg.StopBits = tarm.Stop1
	}

	switch opts.Parity {
	case "N":
		cfg.Parity = tarm.ParityNone
	case "E":
		cfg.Parity = tarm.ParityEven
	case "O":
		cfg.Parity = tarm.ParityOdd
	}
	return cfg, nil
}
