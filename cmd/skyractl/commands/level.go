package commands

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/internal/utils"
)

// NewLevelCommand creates the level command for the daemon's log level.
func NewLevelCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Show or change the daemon's log level",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the daemon's log level",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := getClient(cmd)
				if err != nil {
					return err
				}
				level, err := c.GetLevel()
				if err != nil {
					return fmt.Errorf("failed to get log level: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), level)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <debug|info|warn|error>",
			Short:     "Change the daemon's log level",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"debug", "info", "warn", "error"},
			RunE: func(cmd *cobra.Command, args []string) error {
				if !utils.IsValidLogLevel(args[0]) {
					return fmt.Errorf("invalid log level %q; must be debug, info, warn, or error", args[0])
				}
				c, err := getClient(cmd)
				if err != nil {
					return err
				}
				level, err := c.SetLevel(args[0])
				if err != nil {
					return fmt.Errorf("failed to set log level: %w", err)
				}
				if logger != nil {
					logger.Debug("daemon log level changed", "level", level)
				}
				pterm.Success.Printf("Daemon log level set to %s\n", level)
				return nil
			},
		},
	)
	return cmd
}
