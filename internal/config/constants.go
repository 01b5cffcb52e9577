package config

import "time"

// File and socket locations shared by skyrad and skyractl.
const (
	ConfigDirName        = "skyra"
	DaemonConfigFilename = "skyrad.yaml"
	ClientConfigFilename = "skyractl.yaml"
	SocketFilename       = "skyrad.sock"

	// SystemSocketDir and SystemConfigDir are where the systemd unit keeps
	// its socket and config.
	SystemSocketDir = "/run/skyrad"
	SystemConfigDir = "/etc/skyrad"

	// EnvPrefix prefixes environment overrides such as
	// SKYRA_CONFIG_API_LISTEN_ADDRESS.
	EnvPrefix = "SKYRA"
)

// API defaults.
const (
	DefaultKeyLength        = 32
	DefaultKeyCharset       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultAPIListenAddress = ":9124"
	DefaultRateLimit        = 120 // requests per minute per client IP
	DefaultMDNSInstance     = "skyrad"
)

const (
	// DefaultMonitorInterval is how often connected boxes have their key
	// switch and channels polled.
	DefaultMonitorInterval = 30 * time.Second
	MinMonitorInterval     = time.Second
)

// Log levels and formats accepted in config and on the command line.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty" // colourised through pterm
)
