// Package skyratest provides an in-memory Skyra laser box for tests and for
// running the daemon without hardware.
package skyratest

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// AckReply is what the simulated box answers to accepted set commands.
const AckReply = "OK"

// Channel is the simulated state of one laser head.
type Channel struct {
	Index      string
	Wavelength string
	PowerW     float64
	On         bool
	Active     bool
}

// Simulator emulates a Skyra box behind a skyra.Transport. It also satisfies
// skyra.Opener, returning itself from Open.
type Simulator struct {
	mu sync.Mutex

	serialNumber string
	keySwitch    bool
	channels     map[string]*Channel
	indices      []string

	rx       []byte
	partial  []byte
	commands []string
	closed   bool
	opens    int

	replies    map[string]string
	silent     bool
	garbage    string
	ignoreSets bool
	openErr    error
	latency    time.Duration

	lastPort    string
	lastBaud    int
	lastTimeout time.Duration
}

// New creates a simulator with the key switch on.
func New(serialNumber string, channels ...Channel) *Simulator {
	s := &Simulator{
		serialNumber: serialNumber,
		keySwitch:    true,
		channels:     make(map[string]*Channel, len(channels)),
		replies:      make(map[string]string),
	}
	for _, ch := range channels {
		c := ch
		s.channels[c.Index] = &c
		s.indices = append(s.indices, c.Index)
	}
	// longest index first so prefix matching is unambiguous
	sort.Slice(s.indices, func(i, j int) bool { return len(s.indices[i]) > len(s.indices[j]) })
	return s
}

// FromConfig builds a simulator that passes the handshake for cfg. Channels
// report their name as wavelength when the name is numeric.
func FromConfig(cfg skyra.Config) *Simulator {
	channels := make([]Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		wl := "0"
		if _, err := strconv.Atoi(ch.Name); err == nil {
			wl = ch.Name
		}
		channels = append(channels, Channel{Index: ch.Index, Wavelength: wl})
	}
	return New(cfg.SerialNumber, channels...)
}

// Open implements skyra.Opener.
func (s *Simulator) Open(port string, baud int, timeout time.Duration) (skyra.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPort, s.lastBaud, s.lastTimeout = port, baud, timeout
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	s.closed = false
	s.rx = nil
	s.partial = nil
	return s, nil
}

// Write accepts command bytes. Each complete '\r' terminated command produces
// one reply line.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("simulator: port closed")
	}
	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\r')
		if i < 0 {
			break
		}
		cmd := string(s.partial[:i])
		s.partial = s.partial[i+1:]
		s.commands = append(s.commands, cmd)
		if s.silent {
			continue
		}
		s.rx = append(s.rx, s.respond(cmd)+"\r\n"...)
		if s.garbage != "" {
			s.rx = append(s.rx, s.garbage...)
		}
	}
	return len(p), nil
}

// ReadLine returns the next reply line. With no complete line pending it
// blocks for the read timeout given to Open, like a real port, and then
// returns an error wrapping skyra.ErrTimeout.
func (s *Simulator) ReadLine() ([]byte, error) {
	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}

	s.mu.Lock()
	line, ok, err := s.nextLine()
	timeout := s.lastTimeout
	s.mu.Unlock()
	if err != nil || ok {
		return line, err
	}

	time.Sleep(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, ok, err = s.nextLine(); err != nil || ok {
		return line, err
	}
	return nil, fmt.Errorf("simulator: no reply within %s: %w", timeout, skyra.ErrTimeout)
}

// nextLine pops a complete reply line. Caller holds s.mu.
func (s *Simulator) nextLine() ([]byte, bool, error) {
	if s.closed {
		return nil, false, fmt.Errorf("simulator: port closed")
	}
	i := bytes.IndexByte(s.rx, '\n')
	if i < 0 {
		return nil, false, nil
	}
	line := append([]byte(nil), s.rx[:i+1]...)
	s.rx = s.rx[i+1:]
	return line, true, nil
}

// Buffered returns the number of unread reply bytes.
func (s *Simulator) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

// Close marks the port closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Simulator) respond(cmd string) string {
	if r, ok := s.replies[cmd]; ok {
		return r
	}
	switch cmd {
	case "sn?":
		return s.serialNumber
	case "@cobasks?":
		return strconv.Itoa(boolToInt(s.keySwitch))
	}

	for _, idx := range s.indices {
		if !strings.HasPrefix(cmd, idx) {
			continue
		}
		ch := s.channels[idx]
		rest := cmd[len(idx):]
		switch {
		case rest == "glw?":
			return ch.Wavelength
		case rest == "p?":
			return strconv.FormatFloat(ch.PowerW, 'f', 4, 64)
		case strings.HasPrefix(rest, "p "):
			w, err := strconv.ParseFloat(strings.TrimPrefix(rest, "p "), 64)
			if err != nil || w < 0 {
				return skyra.SyntaxErrorReply
			}
			if !s.ignoreSets {
				ch.PowerW = w
			}
			return AckReply
		case rest == "l?":
			return strconv.Itoa(boolToInt(ch.On))
		case rest == "l0" || rest == "l1":
			if !s.ignoreSets {
				ch.On = rest == "l1"
			}
			return AckReply
		case rest == "gla?":
			return strconv.Itoa(boolToInt(ch.Active))
		case rest == "sla 0" || rest == "sla 1":
			if !s.ignoreSets {
				ch.Active = rest == "sla 1"
			}
			return AckReply
		}
	}
	return skyra.SyntaxErrorReply
}

// SetReply makes the box answer cmd with reply regardless of its state.
func (s *Simulator) SetReply(cmd, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[cmd] = reply
}

// SetSilent stops the box from answering.
func (s *Simulator) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// SetTrailingGarbage appends extra bytes after every reply line.
func (s *Simulator) SetTrailingGarbage(g string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.garbage = g
}

// SetIgnoreSets makes the box acknowledge set commands without applying them.
func (s *Simulator) SetIgnoreSets(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreSets = ignore
}

// SetKeySwitch sets the simulated key switch position.
func (s *Simulator) SetKeySwitch(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keySwitch = on
}

// SetOpenError makes Open fail with err.
func (s *Simulator) SetOpenError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// SetLatency delays every ReadLine.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// SetChannel replaces the simulated state of the channel with ch.Index.
func (s *Simulator) SetChannel(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.channels[ch.Index]; ok {
		*existing = ch
		return
	}
	c := ch
	s.channels[c.Index] = &c
	s.indices = append(s.indices, c.Index)
	sort.Slice(s.indices, func(i, j int) bool { return len(s.indices[i]) > len(s.indices[j]) })
}

// Channel returns the simulated state of the channel with index idx.
func (s *Simulator) Channel(idx string) (Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[idx]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// Commands returns every command received so far, without terminators.
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// ResetCommands clears the command log.
func (s *Simulator) ResetCommands() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}

// Closed reports whether the port is closed.
func (s *Simulator) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// OpenCount returns how many times Open succeeded.
func (s *Simulator) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// LastOpen returns the parameters of the most recent Open call.
func (s *Simulator) LastOpen() (port string, baud int, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPort, s.lastBaud, s.lastTimeout
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
