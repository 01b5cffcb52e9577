package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/skyrad/internal/config"
	"github.com/jmylchreest/skyrad/internal/utils"
	"github.com/jmylchreest/skyrad/pkg/client"
)

// NewRootCommand creates the root command. defaultSocket is used when
// neither --socket nor --api-url is given.
func NewRootCommand(logger *slog.Logger, defaultSocket, version, commit, buildDate string) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "skyractl",
		Short:         "Control Cobalt Skyra laser boxes through skyrad",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("log-level") {
				lvl, _ := cmd.Flags().GetString("log-level")
				if err := utils.SetLevel(lvl); err != nil {
					return fmt.Errorf("invalid --log-level: %w", err)
				}
			}
			if _, err := getClient(cmd); err == nil {
				return nil
			}
			c := newClient(getLoggerFromCmd(cmd), v, defaultSocket)
			cmd.SetContext(context.WithValue(cmd.Context(), ClientContextKey, c))
			return nil
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("socket", "", "Path to skyrad socket")
	cmd.PersistentFlags().String("api-url", "", "Use the HTTP API at this URL instead of the socket (env SKYRA_API_URL)")
	cmd.PersistentFlags().String("api-key", "", "API key for --api-url (env SKYRA_API_KEY)")
	cmd.PersistentFlags().String("log-level", config.LogLevelInfo, "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("socket", cmd.PersistentFlags().Lookup("socket"))
	_ = v.BindPFlag("api_url", cmd.PersistentFlags().Lookup("api-url"))
	_ = v.BindPFlag("api_key", cmd.PersistentFlags().Lookup("api-key"))

	// Add commands
	cmd.AddCommand(newVersionCommand(version, commit, buildDate))
	cmd.AddCommand(NewBoxCommand(logger))
	cmd.AddCommand(NewChannelCommand(logger))
	cmd.AddCommand(NewAPIKeyCommand(logger))
	cmd.AddCommand(NewLevelCommand(logger))
	cmd.AddCommand(NewPortsCommand())
	cmd.AddCommand(NewDiscoverCommand())
	cmd.AddCommand(NewExerciseCommand(logger))

	if logger != nil {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		cmd.SetContext(context.WithValue(parent, loggerContextKey{}, logger))
	}

	return cmd
}

// newClient picks the HTTP client when an API URL is configured, the socket
// client otherwise.
func newClient(logger *slog.Logger, v *viper.Viper, defaultSocket string) client.ClientInterface {
	if url := v.GetString("api_url"); url != "" {
		logger.Debug("client: using HTTP API", "url", url)
		return client.NewHTTP(logger, url, v.GetString("api_key"))
	}
	socket := v.GetString("socket")
	if socket == "" {
		socket = defaultSocket
	}
	return client.New(logger, socket)
}

// newVersionCommand creates the version command
func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Client:\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Build Date: %s\n", buildDate)

			c, err := getClient(cmd)
			if err != nil {
				return
			}
			resp, err := c.GetVersion()
			if err != nil {
				fmt.Fprintf(out, "\nDaemon: not reachable\n")
				return
			}
			fmt.Fprintf(out, "\nDaemon:\n")
			if v, ok := resp["version"].(string); ok {
				fmt.Fprintf(out, "  Version:    %s\n", v)
			}
			if c, ok := resp["commit"].(string); ok {
				fmt.Fprintf(out, "  Commit:     %s\n", c)
			}
			if d, ok := resp["build_date"].(string); ok {
				fmt.Fprintf(out, "  Build Date: %s\n", d)
			}
		},
	}
}
