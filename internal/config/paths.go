package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return filepath.Join("/run/user", strconv.Itoa(os.Getuid()))
}

// socketCandidates lists where a running skyrad may be listening, most
// specific first: the user's runtime dir, then the systemd unit's socket.
func socketCandidates() []string {
	return []string{
		filepath.Join(runtimeDir(), SocketFilename),
		filepath.Join(SystemSocketDir, SocketFilename),
	}
}

// GetRuntimeSocketPath returns the first candidate socket that exists, or
// the user's runtime socket when none do yet.
func GetRuntimeSocketPath() string {
	candidates := socketCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidates[0]
}

// GetConfigBaseDir is $XDG_CONFIG_HOME/skyra, or ~/.config/skyra. A system
// service pointing XDG_CONFIG_HOME at /etc/skyrad uses that directory as is.
func GetConfigBaseDir() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	switch {
	case xdg == SystemConfigDir:
		return xdg
	case xdg != "":
		return filepath.Join(xdg, ConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", ConfigDirName)
}

func GetConfigPath(filename string) string {
	return filepath.Join(GetConfigBaseDir(), filename)
}

// ValidateMonitorInterval returns the poll interval to use. Zero or less
// disables polling; anything shorter than MinMonitorInterval is raised to it
// so the monitor cannot starve user commands of the serial port.
func ValidateMonitorInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 0
	case d < MinMonitorInterval:
		return MinMonitorInterval
	default:
		return d
	}
}
