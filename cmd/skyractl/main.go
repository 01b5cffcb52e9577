package main

import (
	"context"
	"os"

	"github.com/jmylchreest/skyrad/cmd/skyractl/commands"
	"github.com/jmylchreest/skyrad/internal/config"
	"github.com/jmylchreest/skyrad/internal/utils"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(config.ClientConfigFilename, "")
	if err != nil {
		utils.SetupErrorLogger().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// CLI output goes through pterm; the logger only carries diagnostics.
	logger := utils.SetupLogger(cfg.Config.Logging.Level, cfg.Config.Logging.Format)
	utils.SetAsDefaultLogger(logger)

	socket := cfg.Config.Server.UnixSocket
	if socket == "" {
		socket = config.GetRuntimeSocketPath()
	}

	rootCmd := commands.NewRootCommand(logger, socket, version, commit, buildDate)
	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
