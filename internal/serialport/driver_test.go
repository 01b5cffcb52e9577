package serialport

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tarm "github.com/tarm/serial"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/jmylchreest/skyrad/pkg/skyra"
	"github.com/jmylchreest/skyrad/pkg/skyra/skyratest"
)

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)
	assert.Equal(t, 9600, opts.BaudRate)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.Error(t, err)
}

func TestPortOptionsConversions(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	cfg, err := PortOptions{Parity: "O", StopBits: 2}.TarmConfig("/dev/ttyS0", pollInterval)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS0", cfg.Name)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, tarm.ParityOdd, cfg.Parity)
	assert.Equal(t, tarm.Stop2, cfg.StopBits)
	assert.Equal(t, pollInterval, cfg.ReadTimeout)
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"": DriverBugst, "BUGST": DriverBugst, "tarm": DriverTarm, " simulator ": DriverSimulator} {
		got, err := ParseDriver(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDriver("ftdi")
	assert.Error(t, err)
}

// fakeBox answers Skyra commands written to a TestableSerialPort.
func fakeBox(serialNumber string) func(p []byte) []byte {
	return func(p []byte) []byte {
		cmd := strings.TrimSuffix(string(p), "\r")
		switch cmd {
		case "sn?":
			return []byte(serialNumber + "\r\n")
		case "@cobasks?", "1l?", "1gla?":
			return []byte("1\r\n")
		case "1glw?":
			return []byte("488\r\n")
		case "1p?":
			return []byte("0.0100\r\n")
		}
		return []byte(skyra.SyntaxErrorReply + "\r\n")
	}
}

func TestBugstOpenerRunsHandshake(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("stale"))
	port.OnWrite = fakeBox("42")

	var gotMode *serial.Mode
	orig := openBugstPort
	openBugstPort = func(name string, mode *serial.Mode) (SerialPorter, error) {
		gotMode = mode
		return port, nil
	}
	t.Cleanup(func() { openBugstPort = orig })

	cfg := skyra.Config{
		Port:         "/dev/ttyUSB0",
		SerialNumber: "42",
		Channels:     []skyra.ChannelConfig{{Name: "488", Index: "1", MaxPowerMW: 20}},
	}
	opener, err := NewOpener(DriverBugst, PortOptions{}, cfg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := skyra.Open(opener, cfg, logger)
	require.NoError(t, err)

	assert.Equal(t, 115200, gotMode.BaudRate)
	assert.Equal(t, pollInterval, port.ReadTimeout)
	assert.Equal(t, 1, port.InputResets)

	p, err := c.Power("488")
	require.NoError(t, err)
	assert.Equal(t, 10.0, p)

	require.NoError(t, c.Close())
	assert.True(t, port.Closed)
}

func TestTarmOpenerFailure(t *testing.T) {
	orig := openTarmPort
	openTarmPort = func(cfg *tarm.Config) (SerialPorter, error) {
		return nil, errors.New("permission denied")
	}
	t.Cleanup(func() { openTarmPort = orig })

	cfg := skyra.Config{Port: "/dev/ttyUSB9", SerialNumber: "42"}
	opener, err := NewOpener(DriverTarm, PortOptions{}, cfg)
	require.NoError(t, err)

	_, err = skyra.Open(opener, cfg, nil)
	assert.ErrorIs(t, err, skyra.ErrConnection)
}

func TestSimulatorDriver(t *testing.T) {
	cfg := skyra.Config{
		Port:         "sim0",
		SerialNumber: "28288",
		Channels:     []skyra.ChannelConfig{{Name: "405", Index: "4", MaxPowerMW: 110}},
		ReadTimeout:  time.Second,
	}
	opener, err := NewOpener(DriverSimulator, PortOptions{}, cfg)
	require.NoError(t, err)
	_, ok := opener.(*skyratest.Simulator)
	require.True(t, ok)

	c, err := skyra.Open(opener, cfg, nil)
	require.NoError(t, err)
	wl, err := c.Wavelength("405")
	require.NoError(t, err)
	assert.Equal(t, "405", wl)
	require.NoError(t, c.Close())
}

func TestListPortsFallsBack(t *testing.T) {
	origDetailed, origList := detailedPortsList, portsList
	t.Cleanup(func() { detailedPortsList, portsList = origDetailed, origList })

	detailedPortsList = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("unsupported") }
	portsList = func() ([]string, error) { return []string{"/dev/ttyUSB1", "/dev/ttyACM0"}, nil }

	ports, err := ListPorts()
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyACM0", ports[0].Name)
	assert.False(t, ports[0].IsUSB)
}
