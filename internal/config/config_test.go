package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `config:
  api:
    listen_address: "127.0.0.1:9200"
    rate_limit: 0
  logging:
    level: debug
    format: json
  monitor:
    interval: 5s
  boxes:
    - id: lab
      name: Bench laser
      port: /dev/ttyUSB0
      serial_number: "28288"
      driver: tarm
      read_timeout: 2s
      channels:
        - name: "405"
          index: 4
          max_power_mw: 110
        - name: "561"
          index: 1
          max_power_mw: 55
          settle_delay: 500ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skyrad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults_NoConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test.yaml")

	cfg, err := Load("test.yaml", configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIListenAddress, cfg.Config.API.ListenAddress)
	assert.Equal(t, DefaultRateLimit, cfg.Config.API.RateLimit)
	assert.Equal(t, DefaultMonitorInterval, cfg.Config.Monitor.Interval)
	assert.Equal(t, LogLevelInfo, cfg.Config.Logging.Level)
	assert.Empty(t, cfg.Config.Boxes)
	assert.Equal(t, configPath, cfg.Path())
}

func TestLoadBoxes(t *testing.T) {
	cfg, err := Load("", writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9200", cfg.Config.API.ListenAddress)
	assert.Equal(t, 0, cfg.Config.API.RateLimit)
	assert.Equal(t, LogFormatJSON, cfg.Config.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.Config.Monitor.Interval)

	box, ok := cfg.Box("lab")
	require.True(t, ok)
	assert.Equal(t, "tarm", box.Driver)
	require.Len(t, box.Channels, 2)
	assert.Equal(t, "4", box.Channels[0].Index)
	assert.Equal(t, 55.0, box.Channels[1].MaxPowerMW)
	assert.Equal(t, 500*time.Millisecond, box.Channels[1].SettleDelay)

	cc := box.ControllerConfig()
	assert.Equal(t, "Bench laser", cc.Name)
	assert.Equal(t, "28288", cc.SerialNumber)
	assert.Equal(t, 2*time.Second, cc.ReadTimeout)

	_, ok = cfg.Box("missing")
	assert.False(t, ok)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SKYRA_CONFIG_API_LISTEN_ADDRESS", "0.0.0.0:1234")
	cfg, err := Load("", writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:1234", cfg.Config.API.ListenAddress)
}

func TestLoadRejectsBadBoxes(t *testing.T) {
	tests := map[string]string{
		"missing id": `config:
  boxes:
    - port: /dev/ttyUSB0
      serial_number: "1"
`,
		"duplicate id": `config:
  boxes:
    - {id: a, port: /dev/ttyUSB0, serial_number: "1"}
    - {id: a, port: /dev/ttyUSB1, serial_number: "2"}
`,
		"duplicate channel": `config:
  boxes:
    - id: a
      port: /dev/ttyUSB0
      serial_number: "1"
      channels:
        - {name: "488", index: 3, max_power_mw: 110}
        - {name: "488", index: 2, max_power_mw: 55}
`,
		"no serial": `config:
  boxes:
    - {id: a, port: /dev/ttyUSB0}
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoadConfig_WithTimeFields(t *testing.T) {
	configPath := writeConfig(t, sampleConfig)
	cfg, err := Load("", configPath)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, cfg.AddAPIKey(APIKey{
		Key:       "abc123",
		Name:      "test",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}))
	require.NoError(t, cfg.Save())

	cfg2, err := Load("", configPath)
	require.NoError(t, err)
	require.Len(t, cfg2.State.APIKeys, 1)
	key := cfg2.State.APIKeys[0]
	assert.Equal(t, "abc123", key.Key)
	assert.Equal(t, "test", key.Name)
	assert.WithinDuration(t, now, key.CreatedAt, time.Second)
	assert.WithinDuration(t, now.Add(24*time.Hour), key.ExpiresAt, time.Second)

	// operator settings survive the write
	box, ok := cfg2.Box("lab")
	require.True(t, ok)
	assert.Len(t, box.Channels, 2)
}

func TestAPIKeyState(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "keys.yaml"))
	require.NoError(t, err)

	require.NoError(t, cfg.AddAPIKey(APIKey{Key: "k1", Name: "one"}))
	assert.Error(t, cfg.AddAPIKey(APIKey{Key: "k1", Name: "dup"}))

	k, ok := cfg.FindAPIKey("k1")
	require.True(t, ok)
	assert.False(t, k.IsDisabled())
	assert.False(t, k.IsExpired())

	updated, err := cfg.SetAPIKeyDisabledStatus("one", true)
	require.NoError(t, err)
	assert.True(t, updated.Disabled)
	assert.True(t, k.IsDisabled(), "FindAPIKey returns the live entry")

	_, err = cfg.SetAPIKeyDisabledStatus("nope", true)
	assert.Error(t, err)

	at := time.Now().UTC()
	require.NoError(t, cfg.UpdateAPIKeyLastUsed("k1", at))
	assert.Equal(t, at, cfg.GetAPIKeys()[0].LastUsedAt)
	assert.Error(t, cfg.UpdateAPIKeyLastUsed("nope", at))

	assert.True(t, cfg.DeleteAPIKey("k1"))
	assert.False(t, cfg.DeleteAPIKey("k1"))
	assert.Empty(t, cfg.GetAPIKeys())

	expired := APIKey{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, expired.IsExpired())
}

func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey(DefaultKeyLength)
	require.NoError(t, err)
	assert.Len(t, k, DefaultKeyLength)
	for _, r := range k {
		assert.Contains(t, DefaultKeyCharset, string(r))
	}
	_, err = GenerateKey(0)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	_, err := Load("", writeConfig(t, "not: [valid: yaml"))
	assert.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load("", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *Config, 16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, cfg.Watch(ctx, logger, func(c *Config) { reloaded <- c }))

	updated := []byte("config:\n  logging:\n    level: warn\n")
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	// a truncate may be observed before the final write
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Config.Logging.Level == LogLevelWarn {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestBoxOpener(t *testing.T) {
	cfg, err := Load("", writeConfig(t, sampleConfig))
	require.NoError(t, err)
	b, ok := cfg.Box("lab")
	require.True(t, ok)

	opener, err := b.Opener()
	require.NoError(t, err)
	assert.NotNil(t, opener)

	b.Driver = "simulator"
	opener, err = b.Opener()
	require.NoError(t, err)
	tr, err := opener.Open(b.Port, 0, time.Second)
	require.NoError(t, err, "the simulator opens without hardware")
	require.NoError(t, tr.Close())

	b.Driver = "usb-magic"
	_, err = b.Opener()
	assert.Error(t, err)

	b.Driver = ""
	b.Parity = "X"
	_, err = b.Opener()
	assert.Error(t, err)
}
