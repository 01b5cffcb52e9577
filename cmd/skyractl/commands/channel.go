package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/pkg/client"
)

// NewChannelCommand creates the channel command
func NewChannelCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "channel",
		Short:   "Read and change laser channels",
		Aliases: []string{"ch"},
	}

	cmd.AddCommand(
		newChannelGetCommand(),
		newChannelSetCommand(logger),
	)

	return cmd
}

// newChannelGetCommand creates the channel get command
func newChannelGetCommand() *cobra.Command {
	var parseable, refresh bool
	cmd := &cobra.Command{
		Use:   "get <box> [channel]",
		Short: "Show one channel, or every channel of a box",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient(cmd)
			if err != nil {
				return err
			}
			boxID := args[0]

			var channels []map[string]any
			if len(args) > 1 {
				ch, err := c.GetChannel(boxID, args[1], refresh)
				if err != nil {
					return fmt.Errorf("failed to get channel: %w", err)
				}
				channels = []map[string]any{ch}
			} else {
				box, err := c.GetBox(boxID, refresh)
				if err != nil {
					return fmt.Errorf("failed to get box: %w", err)
				}
				channels = boxChannels(box)
			}

			if parseable {
				for _, ch := range channels {
					fmt.Fprintln(cmd.OutOrStdout(), ChannelParseable(boxID, ch))
				}
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(ChannelsTableData(channels)).Render()
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Read from the hardware first")
	return cmd
}

// channelUpdateFromFlags collects the flags the operator actually passed.
func channelUpdateFromFlags(cmd *cobra.Command) (client.ChannelUpdate, error) {
	var u client.ChannelUpdate
	flags := cmd.Flags()
	if flags.Changed("power") {
		p, err := flags.GetFloat64("power")
		if err != nil {
			return u, err
		}
		if p < 0 {
			return u, fmt.Errorf("power must not be negative")
		}
		u.PowerMW = &p
	}
	if flags.Changed("on") {
		on, err := flags.GetBool("on")
		if err != nil {
			return u, err
		}
		u.On = &on
	}
	if flags.Changed("active") {
		active, err := flags.GetBool("active")
		if err != nil {
			return u, err
		}
		u.Active = &active
	}
	return u, nil
}

// enablesEmission reports whether applying u can start or increase emission.
func enablesEmission(u client.ChannelUpdate) bool {
	return (u.On != nil && *u.On) || (u.Active != nil && *u.Active) || (u.PowerMW != nil && *u.PowerMW > 0)
}

func describeUpdate(u client.ChannelUpdate) string {
	var parts []string
	if u.On != nil {
		parts = append(parts, fmt.Sprintf("on=%t", *u.On))
	}
	if u.Active != nil {
		parts = append(parts, fmt.Sprintf("active=%t", *u.Active))
	}
	if u.PowerMW != nil {
		parts = append(parts, fmt.Sprintf("power=%.1fmW", *u.PowerMW))
	}
	return strings.Join(parts, " ")
}

// newChannelSetCommand creates the channel set command
func newChannelSetCommand(logger *slog.Logger) *cobra.Command {
	var parseable, yes bool
	cmd := &cobra.Command{
		Use:   "set <box> <channel>",
		Short: "Change a channel's power, on or active state",
		Long: "Change a channel's power, on or active state. Only the flags given are changed.\n" +
			"When enabling, the daemon switches on before activating before setting power;\n" +
			"when disabling, the order is reversed.",
		Example: "  skyractl channel set bench 488 --on --active --power 8\n" +
			"  skyractl channel set bench 488 --power 0 --active=false --on=false",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient(cmd)
			if err != nil {
				return err
			}
			update, err := channelUpdateFromFlags(cmd)
			if err != nil {
				return err
			}
			if update.Empty() {
				return fmt.Errorf("nothing to set: pass at least one of --power, --on, --active")
			}

			boxID, channel := args[0], args[1]
			if enablesEmission(update) {
				ok, err := acknowledgeSafety(yes, fmt.Sprintf("set %s on %s to %s", channel, boxID, describeUpdate(update)))
				if err != nil || !ok {
					return err
				}
			}

			ch, err := c.SetChannelState(boxID, channel, update)
			if err != nil {
				return fmt.Errorf("failed to set channel %s on %s: %w", channel, boxID, err)
			}
			if logger != nil {
				logger.Debug("channel updated", "box", boxID, "channel", channel, "update", describeUpdate(update))
			}

			if parseable {
				fmt.Fprintln(cmd.OutOrStdout(), ChannelParseable(boxID, ch))
				return nil
			}
			pterm.Success.Printf("Channel %s on %s updated\n", channel, boxID)
			return pterm.DefaultTable.WithHasHeader().WithData(ChannelsTableData([]map[string]any{ch})).Render()
		},
	}
	cmd.Flags().Float64("power", 0, "Power setpoint in milliwatts")
	cmd.Flags().Bool("on", false, "Switch the channel on (--on=false switches it off)")
	cmd.Flags().Bool("active", false, "Set active mode (--active=false clears it)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the laser safety confirmation")
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}
