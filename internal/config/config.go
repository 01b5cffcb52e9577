package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/skyrad/internal/serialport"
	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// Config is the on-disk configuration. The Config block is operator owned;
// the State block is written back by the daemon (API keys).
type Config struct {
	Config ConfigBlock `mapstructure:"config"`
	State  StateBlock  `mapstructure:"state"`

	v    *viper.Viper
	mu   sync.RWMutex
	path string
}

// ConfigBlock holds the operator-facing settings.
type ConfigBlock struct {
	Server  ServerConfig  `mapstructure:"server"`
	API     APIConfig     `mapstructure:"api"`
	MDNS    MDNSConfig    `mapstructure:"mdns"`
	Logging LoggingConfig `mapstructure:"logging"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Boxes   []BoxConfig   `mapstructure:"boxes"`
}

// StateBlock holds values the daemon persists on its own.
type StateBlock struct {
	APIKeys []APIKey `mapstructure:"api_keys" yaml:"api_keys"`
}

// ServerConfig configures the unix socket.
type ServerConfig struct {
	UnixSocket string `mapstructure:"unix_socket"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
}

// MDNSConfig configures advertisement of the HTTP API.
type MDNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Instance string `mapstructure:"instance"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitorConfig configures the background poller. A zero interval disables it.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// BoxConfig describes one laser box attached to the host.
type BoxConfig struct {
	ID           string                `mapstructure:"id"`
	Name         string                `mapstructure:"name"`
	Port         string                `mapstructure:"port"`
	SerialNumber string                `mapstructure:"serial_number"`
	Driver       string                `mapstructure:"driver"`
	BaudRate     int                   `mapstructure:"baud_rate"`
	DataBits     int                   `mapstructure:"data_bits"`
	StopBits     int                   `mapstructure:"stop_bits"`
	Parity       string                `mapstructure:"parity"`
	ReadTimeout  time.Duration         `mapstructure:"read_timeout"`
	Verbose      bool                  `mapstructure:"verbose"`
	VeryVerbose  bool                  `mapstructure:"very_verbose"`
	Channels     []skyra.ChannelConfig `mapstructure:"channels"`
}

// ControllerConfig converts the entry into the controller's construction config.
func (b BoxConfig) ControllerConfig() skyra.Config {
	return skyra.Config{
		Name:         b.Name,
		Port:         b.Port,
		SerialNumber: b.SerialNumber,
		Channels:     append([]skyra.ChannelConfig(nil), b.Channels...),
		BaudRate:     b.BaudRate,
		ReadTimeout:  b.ReadTimeout,
		Verbose:      b.Verbose,
		VeryVerbose:  b.VeryVerbose,
	}
}

// Opener builds the transport opener for the entry's driver and line settings.
func (b BoxConfig) Opener() (skyra.Opener, error) {
	driver, err := serialport.ParseDriver(b.Driver)
	if err != nil {
		return nil, err
	}
	opts, err := serialport.PortOptions{
		BaudRate: b.BaudRate,
		DataBits: b.DataBits,
		StopBits: b.StopBits,
		Parity:   b.Parity,
	}.Normalize()
	if err != nil {
		return nil, fmt.Errorf("box %q: %w", b.ID, err)
	}
	return serialport.NewOpener(driver, opts, b.ControllerConfig())
}

// APIKey is a credential accepted by the HTTP API.
type APIKey struct {
	Key        string    `json:"key" mapstructure:"key" yaml:"key"`
	Name       string    `json:"name" mapstructure:"name" yaml:"name"`
	CreatedAt  time.Time `json:"created_at" mapstructure:"created_at" yaml:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" mapstructure:"expires_at" yaml:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at" mapstructure:"last_used_at" yaml:"last_used_at"`
	Disabled   bool      `json:"disabled" mapstructure:"disabled" yaml:"disabled"`
}

// IsExpired reports whether the key carries an expiry that has passed.
func (k *APIKey) IsExpired() bool {
	return !k.ExpiresAt.IsZero() && time.Now().After(k.ExpiresAt)
}

// IsDisabled reports whether the key has been disabled.
func (k *APIKey) IsDisabled() bool {
	return k.Disabled
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config.server.unix_socket", GetRuntimeSocketPath())
	v.SetDefault("config.api.listen_address", DefaultAPIListenAddress)
	v.SetDefault("config.api.rate_limit", DefaultRateLimit)
	v.SetDefault("config.mdns.enabled", false)
	v.SetDefault("config.mdns.instance", DefaultMDNSInstance)
	v.SetDefault("config.logging.level", LogLevelInfo)
	v.SetDefault("config.logging.format", LogFormatText)
	v.SetDefault("config.monitor.interval", DefaultMonitorInterval)
}

// Load reads configFile (or the XDG default for configName when empty),
// overlays SKYRA_ environment variables and validates the box list. A missing
// file is not an error; defaults apply.
func Load(configName, configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	path := configFile
	if path == "" {
		path = GetConfigPath(configName)
		if err := os.MkdirAll(GetConfigBaseDir(), 0o755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}
	}
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !isConfigNotFound(err) {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		slog.Debug("config: no config file, using defaults", "path", path)
	} else {
		slog.Info("config: loaded", "path", path)
	}

	c := &Config{v: v, path: path}
	err := v.Unmarshal(c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
	)))
	if err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func isConfigNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks the box list for missing or duplicate ids and converts
// each entry through skyra.Config validation.
func (c *Config) Validate() error {
	if c.Config.Monitor.Interval < 0 {
		return fmt.Errorf("config.monitor.interval must not be negative")
	}
	seen := make(map[string]bool, len(c.Config.Boxes))
	for i, b := range c.Config.Boxes {
		if b.ID == "" {
			return fmt.Errorf("config.boxes[%d]: id is required", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("config.boxes[%d]: duplicate id %q", i, b.ID)
		}
		seen[b.ID] = true
		if err := b.ControllerConfig().Validate(); err != nil {
			return fmt.Errorf("config.boxes[%d] (%s): %w", i, b.ID, err)
		}
	}
	return nil
}

// Path returns the file the config was loaded from and is saved to.
func (c *Config) Path() string {
	return c.path
}

// Box returns the box entry with the given id.
func (c *Config) Box(id string) (BoxConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.Config.Boxes {
		if b.ID == id {
			return b, true
		}
	}
	return BoxConfig{}, false
}

// Save writes the state block back to disk. Operator settings are written
// as they were read.
func (c *Config) Save() error {
	c.mu.RLock()
	keys := append([]APIKey(nil), c.State.APIKeys...)
	c.mu.RUnlock()

	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	c.v.SetConfigFile(c.path)
	c.v.Set("state.api_keys", keys)
	if err := c.v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	slog.Debug("config: saved", "path", c.path, "api_keys", len(keys))
	return nil
}

// GetAPIKeys returns a copy of all API keys.
func (c *Config) GetAPIKeys() []APIKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]APIKey(nil), c.State.APIKeys...)
}

// AddAPIKey appends key to the state block.
func (c *Config) AddAPIKey(key APIKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.State.APIKeys {
		if k.Key == key.Key {
			return fmt.Errorf("API key already exists")
		}
	}
	c.State.APIKeys = append(c.State.APIKeys, key)
	return nil
}

// DeleteAPIKey removes the key and reports whether it was present.
func (c *Config) DeleteAPIKey(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, k := range c.State.APIKeys {
		if k.Key == key {
			c.State.APIKeys = append(c.State.APIKeys[:i], c.State.APIKeys[i+1:]...)
			return true
		}
	}
	return false
}

// FindAPIKey returns the stored key. The pointer refers to the live entry.
func (c *Config) FindAPIKey(key string) (*APIKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.State.APIKeys {
		if c.State.APIKeys[i].Key == key {
			return &c.State.APIKeys[i], true
		}
	}
	return nil, false
}

// UpdateAPIKeyLastUsed records a successful use of key.
func (c *Config) UpdateAPIKeyLastUsed(key string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.State.APIKeys {
		if c.State.APIKeys[i].Key == key {
			c.State.APIKeys[i].LastUsedAt = at
			return nil
		}
	}
	return fmt.Errorf("API key not found")
}

// SetAPIKeyDisabledStatus toggles Disabled on the key matched by value or name.
func (c *Config) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (*APIKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.State.APIKeys {
		if c.State.APIKeys[i].Key == keyOrName || c.State.APIKeys[i].Name == keyOrName {
			c.State.APIKeys[i].Disabled = disabled
			updated := c.State.APIKeys[i]
			return &updated, nil
		}
	}
	return nil, fmt.Errorf("API key or name '%s' not found", keyOrName)
}

// GenerateKey returns a random key of length characters from DefaultKeyCharset.
func GenerateKey(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("key length must be positive")
	}
	max := big.NewInt(int64(len(DefaultKeyCharset)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = DefaultKeyCharset[n.Int64()]
	}
	return string(b), nil
}
