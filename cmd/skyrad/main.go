package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/skyrad/internal/config"
	"github.com/jmylchreest/skyrad/internal/server"
	"github.com/jmylchreest/skyrad/internal/utils"
	"github.com/jmylchreest/skyrad/pkg/skyra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	bindFlags(v, flags)

	cfg, err := config.Load(config.DaemonConfigFilename, v.GetString("config"))
	if err != nil {
		utils.SetupErrorLogger().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, format := loggingSettings(v, flags, cfg)
	logger := utils.SetupLogger(level, format)
	utils.SetAsDefaultLogger(logger)

	logger.Info("Starting skyrad",
		"version", version,
		"commit", commit,
		"buildDate", buildDate,
		"config", cfg.Path(),
	)

	manager, err := buildManager(logger, cfg)
	if err != nil {
		logger.Error("failed to register boxes", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.ConnectAll(ctx); err != nil {
		// Boxes that failed stay registered and can be connected later.
		logger.Warn("box: initial connect failed", "error", err)
	}

	srv := server.New(logger, cfg, manager, server.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", "error", err)
		manager.CloseAll()
		os.Exit(1)
	}

	if err := cfg.Watch(ctx, logger, func(fresh *config.Config) {
		applyReload(logger, flags, fresh)
	}); err != nil {
		logger.Warn("config: hot reload disabled", "error", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down...", "signal", sig.String())
	cancel()
	srv.Stop()
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("skyrad", pflag.ContinueOnError)
	fs.String("log-level", config.LogLevelInfo, "Log level (debug, info, warn, error)")
	fs.String("log-format", config.LogFormatText, "Log format (text, json, pretty)")
	fs.String("config", "", "Path to config file")
	return fs
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	_ = v.BindPFlag("logging.level", fs.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", fs.Lookup("log-format"))
	_ = v.BindPFlag("config", fs.Lookup("config"))
}

// loggingSettings prefers flags the operator passed explicitly, then the
// config file.
func loggingSettings(v *viper.Viper, fs *pflag.FlagSet, cfg *config.Config) (level, format string) {
	level, format = cfg.Config.Logging.Level, cfg.Config.Logging.Format
	if fs.Changed("log-level") || level == "" {
		level = v.GetString("logging.level")
	}
	if fs.Changed("log-format") || format == "" {
		format = v.GetString("logging.format")
	}
	return level, format
}

// applyReload picks up the settings that can change without a restart.
// Only the log level qualifies; boxes and listeners need a restart.
func applyReload(logger *slog.Logger, fs *pflag.FlagSet, fresh *config.Config) {
	if fs.Changed("log-level") {
		return
	}
	lvl := fresh.Config.Logging.Level
	if lvl == "" || lvl == utils.GetLevel() {
		return
	}
	if err := utils.SetLevel(lvl); err != nil {
		logger.Warn("config: ignoring invalid log level", "level", lvl, "error", err)
		return
	}
	logger.Info("config: log level changed", "level", lvl)
}

// openerFactory resolves each box's transport from its config entry.
func openerFactory(cfg *config.Config) skyra.OpenerFactory {
	return func(id string, _ skyra.Config) (skyra.Opener, error) {
		b, ok := cfg.Box(id)
		if !ok {
			return nil, fmt.Errorf("box %q is not configured", id)
		}
		return b.Opener()
	}
}

// buildManager registers every configured box. Nothing is opened yet.
func buildManager(logger *slog.Logger, cfg *config.Config) (*skyra.Manager, error) {
	m := skyra.NewManager(logger, openerFactory(cfg))
	for _, b := range cfg.Config.Boxes {
		if err := m.Register(b.ID, b.ControllerConfig()); err != nil {
			return nil, fmt.Errorf("box %q: %w", b.ID, err)
		}
	}
	return m, nil
}
