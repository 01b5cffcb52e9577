package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/skyrad/internal/config"
	"github.com/jmylchreest/skyrad/internal/utils"
	"github.com/jmylchreest/skyrad/pkg/skyra"
)

const simulatedConfig = `config:
  logging:
    level: warn
    format: json
  boxes:
    - id: bench
      name: Bench
      port: sim0
      serial_number: "28288"
      driver: simulator
      channels:
        - name: "488"
          index: "3"
          max_power_mw: 110
        - name: "561"
          index: "1"
          max_power_mw: 55
    - id: broken
      name: Broken
      port: /dev/does-not-exist
      serial_number: "1"
      driver: bugst
      channels:
        - name: "405"
          index: "1"
          max_power_mw: 50
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skyrad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load("", path)
	require.NoError(t, err)
	return cfg
}

func TestFlagBindings(t *testing.T) {
	fs := newFlagSet()
	v := viper.New()
	bindFlags(v, fs)

	assert.Equal(t, "info", v.GetString("logging.level"))
	assert.Equal(t, "text", v.GetString("logging.format"))
	assert.Equal(t, "", v.GetString("config"))

	require.NoError(t, fs.Parse([]string{"--log-level", "debug", "--config", "/tmp/x.yaml"}))
	assert.Equal(t, "debug", v.GetString("logging.level"))
	assert.Equal(t, "/tmp/x.yaml", v.GetString("config"))
}

func TestLoggingSettings(t *testing.T) {
	cfg := loadConfig(t, simulatedConfig)

	t.Run("config file wins over flag defaults", func(t *testing.T) {
		fs := newFlagSet()
		v := viper.New()
		bindFlags(v, fs)
		level, format := loggingSettings(v, fs, cfg)
		assert.Equal(t, "warn", level)
		assert.Equal(t, "json", format)
	})

	t.Run("explicit flags win over config file", func(t *testing.T) {
		fs := newFlagSet()
		v := viper.New()
		bindFlags(v, fs)
		require.NoError(t, fs.Parse([]string{"--log-level=debug", "--log-format=pretty"}))
		level, format := loggingSettings(v, fs, cfg)
		assert.Equal(t, "debug", level)
		assert.Equal(t, "pretty", format)
	})
}

func TestApplyReload(t *testing.T) {
	require.NoError(t, utils.SetLevel("info"))
	t.Cleanup(func() { _ = utils.SetLevel("info") })

	fresh := loadConfig(t, simulatedConfig)

	pinned := newFlagSet()
	require.NoError(t, pinned.Parse([]string{"--log-level=info"}))
	applyReload(testLogger(), pinned, fresh)
	assert.Equal(t, "info", utils.GetLevel(), "level given on the command line is kept")

	applyReload(testLogger(), newFlagSet(), fresh)
	assert.Equal(t, "warn", utils.GetLevel())

	fresh.Config.Logging.Level = "loud"
	applyReload(testLogger(), newFlagSet(), fresh)
	assert.Equal(t, "warn", utils.GetLevel(), "invalid level is ignored")
}

func TestBuildManager(t *testing.T) {
	cfg := loadConfig(t, simulatedConfig)

	m, err := buildManager(testLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)

	boxes := m.GetBoxes()
	require.Len(t, boxes, 2)
	assert.Contains(t, boxes, "bench")
	assert.Contains(t, boxes, "broken")

	err = m.ConnectAll(context.Background())
	require.Error(t, err, "the missing port fails to open")

	bench, err := m.GetBox(context.Background(), "bench", false)
	require.NoError(t, err)
	assert.Equal(t, skyra.StateReady.String(), bench.State)
	assert.Equal(t, "28288", bench.SerialNumber)
	require.Len(t, bench.Channels, 2)

	broken, err := m.GetBox(context.Background(), "broken", false)
	require.NoError(t, err)
	assert.NotEqual(t, skyra.StateReady.String(), broken.State)
}

func TestOpenerFactory(t *testing.T) {
	cfg := loadConfig(t, simulatedConfig)
	factory := openerFactory(cfg)

	opener, err := factory("bench", skyra.Config{})
	require.NoError(t, err)
	assert.NotNil(t, opener)

	_, err = factory("missing", skyra.Config{})
	assert.Error(t, err)

	cfg.Config.Boxes[0].Driver = "usb-magic"
	_, err = factory("bench", skyra.Config{})
	assert.Error(t, err)

	cfg.Config.Boxes[0].Driver = "tarm"
	cfg.Config.Boxes[0].Parity = "X"
	_, err = factory("bench", skyra.Config{})
	assert.Error(t, err)
}
