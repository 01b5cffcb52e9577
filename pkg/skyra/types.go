package skyra

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultName is the display name used when Config.Name is empty.
const DefaultName = "Skyra_laser_box"

// State is the lifecycle state of a Controller.
type State int

const (
	StateUnopened State = iota
	StateOpened
	StateIdentityVerified
	StateInterlockVerified
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpened:
		return "opened"
	case StateIdentityVerified:
		return "identity_verified"
	case StateInterlockVerified:
		return "interlock_verified"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChannelConfig describes one laser head installed in the box.
type ChannelConfig struct {
	// Name is the caller's label for the channel, e.g. "488".
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// Index is the device token prefixed to every channel command, e.g. "3".
	Index string `json:"index" yaml:"index" mapstructure:"index"`
	// MaxPowerMW is the highest power the controller will ever request.
	MaxPowerMW float64 `json:"max_power_mw" yaml:"max_power_mw" mapstructure:"max_power_mw"`
	// SettleDelay is waited after a successful on or active state change.
	SettleDelay time.Duration `json:"settle_delay,omitempty" yaml:"settle_delay,omitempty" mapstructure:"settle_delay"`
}

// Config is everything needed to open a Controller.
type Config struct {
	Name         string
	Port         string
	SerialNumber string
	// Channels is the channel registry. Its order is the order channels are
	// queried during the startup handshake.
	Channels    []ChannelConfig
	BaudRate    int
	ReadTimeout time.Duration
	// Verbose logs every operation at info level instead of debug.
	Verbose bool
	// VeryVerbose traces every command frame and reply at debug level.
	VeryVerbose bool
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

// Validate checks the configuration without touching any hardware.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if c.SerialNumber == "" {
		return fmt.Errorf("%w: expected serial number is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("%w: channel %d has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[ch.Name]; dup {
			return fmt.Errorf("%w: duplicate channel name %q", ErrInvalidConfig, ch.Name)
		}
		seen[ch.Name] = struct{}{}
		if ch.Index == "" || strings.ContainsAny(ch.Index, " \r\n\t") {
			return fmt.Errorf("%w: channel %q has invalid index %q", ErrInvalidConfig, ch.Name, ch.Index)
		}
		if math.IsNaN(ch.MaxPowerMW) || math.IsInf(ch.MaxPowerMW, 0) || ch.MaxPowerMW < 0 {
			return fmt.Errorf("%w: channel %q has invalid max power %v", ErrInvalidConfig, ch.Name, ch.MaxPowerMW)
		}
		if ch.SettleDelay < 0 {
			return fmt.Errorf("%w: channel %q has negative settle delay", ErrInvalidConfig, ch.Name)
		}
	}
	return nil
}

// ChannelState is a snapshot of one channel's cached values.
type ChannelState struct {
	Name         string  `json:"name"`
	Index        string  `json:"index"`
	WavelengthNM string  `json:"wavelength_nm"`
	MaxPowerMW   float64 `json:"max_power_mw"`
	PowerMW      float64 `json:"power_mw"`
	On           bool    `json:"on"`
	Active       bool    `json:"active"`
}

// Box is the manager's view of one configured laser box.
type Box struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Port         string         `json:"port"`
	SerialNumber string         `json:"serial_number"`
	State        string         `json:"state"`
	KeySwitch    bool           `json:"key_switch"`
	Channels     []ChannelState `json:"channels"`
	ConnectedAt  time.Time      `json:"connected_at"`
	LastSeen     time.Time      `json:"last_seen"`
	LastError    string         `json:"last_error,omitempty"`
}

// Channel returns the named channel snapshot from the box.
func (b *Box) Channel(name string) (ChannelState, bool) {
	for _, ch := range b.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelState{}, false
}
