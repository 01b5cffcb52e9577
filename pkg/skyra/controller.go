package skyra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type channelEntry struct {
	cfg        ChannelConfig
	wavelength string
	powerMW    float64
	on         bool
	active     bool
}

func (e *channelEntry) snapshot() ChannelState {
	return ChannelState{
		Name:         e.cfg.Name,
		Index:        e.cfg.Index,
		WavelengthNM: e.wavelength,
		MaxPowerMW:   e.cfg.MaxPowerMW,
		PowerMW:      e.powerMW,
		On:           e.on,
		Active:       e.active,
	}
}

// Controller drives one Skyra laser box. It is created in the Ready state by
// Open and all methods are safe for concurrent use; exchanges with the box
// are serialized.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	transport Transport
	channel   *CommandChannel
	logger    *slog.Logger
	opLevel   slog.Level

	serialNumber string
	keySwitch    bool
	order        []string
	channels     map[string]*channelEntry

	sleep func(time.Duration)
}

// Open connects to a box and runs the startup handshake: open the link,
// verify the serial number, verify the key switch, then read wavelength,
// power, on state and active state of every channel in registry order.
// On any failure the link is released and a *HandshakeError is returned.
func Open(opener Opener, cfg Config, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	c := &Controller{
		cfg:      cfg,
		state:    StateUnopened,
		logger:   logger.With("box", cfg.Name),
		opLevel:  slog.LevelDebug,
		channels: make(map[string]*channelEntry, len(cfg.Channels)),
		sleep:    time.Sleep,
	}
	if cfg.Verbose {
		c.opLevel = slog.LevelInfo
	}

	if err := cfg.Validate(); err != nil {
		return nil, &HandshakeError{Step: StateUnopened, Err: err}
	}
	for _, chCfg := range cfg.Channels {
		c.order = append(c.order, chCfg.Name)
		c.channels[chCfg.Name] = &channelEntry{cfg: chCfg}
	}

	c.logOp("skyra: opening", "port", cfg.Port, "baud", cfg.BaudRate, "timeout", cfg.ReadTimeout)
	t, err := opener.Open(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		return nil, &HandshakeError{
			Step: StateUnopened,
			Err:  fmt.Errorf("%w: no connection on port %s: %w", ErrConnection, cfg.Port, err),
		}
	}
	c.transport = t
	c.channel = NewCommandChannel(t, c.logger, cfg.VeryVerbose)
	c.state = StateOpened

	if err := c.handshake(); err != nil {
		step := c.state
		c.release()
		c.logger.Error("skyra: handshake failed", "step", step.String(), "error", err)
		return nil, &HandshakeError{Step: step, Err: err}
	}

	c.logger.Info("skyra: ready",
		"port", cfg.Port,
		"serial_number", c.serialNumber,
		"channels", len(c.order),
	)
	return c, nil
}

func (c *Controller) handshake() error {
	c.logOp("skyra: getting serial number")
	sn, err := c.channel.Send("sn?")
	if err != nil {
		return err
	}
	c.serialNumber = sn
	c.logOp("skyra: serial number", "serial_number", sn)
	if sn != c.cfg.SerialNumber {
		return fmt.Errorf("%w: box reports serial number %q, expected %q",
			ErrIdentityMismatch, sn, c.cfg.SerialNumber)
	}
	c.state = StateIdentityVerified

	on, err := c.queryKeySwitch()
	if err != nil {
		return err
	}
	if !on {
		return fmt.Errorf("%w: key switch is off", ErrInterlockDisengaged)
	}
	c.state = StateInterlockVerified

	for _, name := range c.order {
		ch := c.channels[name]
		c.logOp("skyra: getting wavelength", "channel", name)
		wl, err := c.channel.Send(ch.cfg.Index + "glw?")
		if err != nil {
			return fmt.Errorf("channel %s: %w", name, err)
		}
		ch.wavelength = wl
		c.logOp("skyra: wavelength", "channel", name, "wavelength_nm", wl)

		if _, err := c.readPower(ch); err != nil {
			return fmt.Errorf("channel %s: %w", name, err)
		}
		if _, err := c.readOnState(ch); err != nil {
			return fmt.Errorf("channel %s: %w", name, err)
		}
		if _, err := c.readActiveState(ch); err != nil {
			return fmt.Errorf("channel %s: %w", name, err)
		}
	}
	c.state = StateReady
	return nil
}

func (c *Controller) queryKeySwitch() (bool, error) {
	c.logOp("skyra: getting key switch status")
	reply, err := c.channel.Send("@cobasks?")
	if err != nil {
		return false, err
	}
	on, err := parseFlag(reply)
	if err != nil {
		return false, &CommandError{Command: "@cobasks?", Reply: reply, Err: err}
	}
	c.keySwitch = on
	c.logOp("skyra: key switch status", "on", on)
	return on, nil
}

// release closes the transport and marks the controller closed. Caller holds mu
// or has exclusive access.
func (c *Controller) release() error {
	c.state = StateClosed
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	c.channel = nil
	return err
}

// Close releases the serial link. Every later operation, including a second
// Close, fails with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	c.logOp("skyra: closing")
	if err := c.release(); err != nil {
		return fmt.Errorf("closing port %s: %w", c.cfg.Port, err)
	}
	c.logger.Info("skyra: closed", "port", c.cfg.Port)
	return nil
}

// Name returns the display name.
func (c *Controller) Name() string { return c.cfg.Name }

// Port returns the port the controller was opened on.
func (c *Controller) Port() string { return c.cfg.Port }

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SerialNumber returns the verified serial number read during the handshake.
func (c *Controller) SerialNumber() string { return c.serialNumber }

// KeySwitch queries the key switch again and returns its status.
func (c *Controller) KeySwitch() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.queryKeySwitch()
}

// ChannelNames returns the registry names in registry order.
func (c *Controller) ChannelNames() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Channels returns cached snapshots of all channels in registry order.
func (c *Controller) Channels() ([]ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}
	out := make([]ChannelState, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.channels[name].snapshot())
	}
	return out, nil
}

// Channel returns the cached snapshot of one channel.
func (c *Controller) Channel(name string) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return ChannelState{}, err
	}
	return ch.snapshot(), nil
}

// Wavelength returns the wavelength reported by the box at startup.
func (c *Controller) Wavelength(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.lookup(name)
	if err != nil {
		return "", err
	}
	return ch.wavelength, nil
}

func (c *Controller) ready() error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if c.state != StateReady {
		return fmt.Errorf("controller not ready (state %s)", c.state)
	}
	return nil
}

func (c *Controller) lookup(name string) (*channelEntry, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	ch, ok := c.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return ch, nil
}

func (c *Controller) logOp(msg string, args ...any) {
	c.logger.Log(context.Background(), c.opLevel, msg, args...)
}
