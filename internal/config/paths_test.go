package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLocations(t *testing.T) {
	tests := []struct {
		name   string
		xdg    string
		daemon string
		suffix string
	}{
		{name: "systemd unit", xdg: "/etc/skyrad", daemon: "/etc/skyrad/skyrad.yaml"},
		{name: "custom xdg", xdg: "/srv/lab/config", daemon: "/srv/lab/config/skyra/skyrad.yaml"},
		{name: "home", xdg: "", suffix: "/.config/skyra/skyractl.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdg)
			if tt.daemon != "" {
				assert.Equal(t, tt.daemon, GetConfigPath(DaemonConfigFilename))
				return
			}
			got := GetConfigPath(ClientConfigFilename)
			assert.True(t, filepath.IsAbs(got))
			assert.True(t, strings.HasSuffix(got, tt.suffix), got)
		})
	}
}

func TestGetRuntimeSocketPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	user := filepath.Join(dir, SocketFilename)
	assert.Equal(t, []string{user, "/run/skyrad/skyrad.sock"}, socketCandidates())

	if _, err := os.Stat(socketCandidates()[1]); err != nil {
		assert.Equal(t, user, GetRuntimeSocketPath(), "falls back to the user socket")
	}
	require.NoError(t, os.WriteFile(user, nil, 0o600))
	assert.Equal(t, user, GetRuntimeSocketPath())
}

func TestValidateMonitorInterval(t *testing.T) {
	tests := map[time.Duration]time.Duration{
		0:                     0,
		-time.Second:          0,
		10 * time.Millisecond: MinMonitorInterval,
		MinMonitorInterval:    MinMonitorInterval,
		time.Minute:           time.Minute,
	}
	for in, want := range tests {
		assert.Equal(t, want, ValidateMonitorInterval(in), in.String())
	}
}
