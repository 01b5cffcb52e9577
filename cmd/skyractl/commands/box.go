package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/pkg/client"
)

// NewBoxCommand creates the box command
func NewBoxCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "box",
		Short:   "Manage laser boxes",
		Aliases: []string{"boxes"},
	}

	cmd.AddCommand(
		newBoxListCommand(),
		newBoxGetCommand(),
		newBoxActionCommand("refresh", "Re-read every channel of a box", func(c client.ClientInterface, id string) (map[string]any, error) {
			return c.RefreshBox(id)
		}),
		newBoxActionCommand("connect", "Open a box and run its handshake", func(c client.ClientInterface, id string) (map[string]any, error) {
			return c.ConnectBox(id)
		}),
		newBoxDisconnectCommand(logger),
	)

	return cmd
}

// selectBox returns args[0] or, without arguments, prompts for one of the
// configured boxes.
func selectBox(c client.ClientInterface, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	boxes, err := c.GetBoxes()
	if err != nil {
		return "", fmt.Errorf("failed to get boxes: %w", err)
	}
	if len(boxes) == 0 {
		return "", fmt.Errorf("no boxes configured")
	}

	ids := sortedIDs(boxes)
	options := make([]string, len(ids))
	for i, id := range ids {
		box, _ := boxes[id].(map[string]any)
		options[i] = fmt.Sprintf("%s (%v)", id, box["name"])
	}
	selected, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		Show("Select a box")
	if err != nil {
		return "", fmt.Errorf("failed to select box: %w", err)
	}
	return strings.Split(selected, " (")[0], nil
}

func renderBox(cmd *cobra.Command, id string, box map[string]any, parseable bool) {
	if parseable {
		fmt.Fprintln(cmd.OutOrStdout(), BoxParseable(id, box))
		for _, ch := range boxChannels(box) {
			fmt.Fprintln(cmd.OutOrStdout(), ChannelParseable(id, ch))
		}
		return
	}
	_ = pterm.DefaultTable.WithData(BoxTableData(id, box)).Render()
	if channels := boxChannels(box); len(channels) > 0 {
		pterm.Println()
		_ = pterm.DefaultTable.WithHasHeader().WithData(ChannelsTableData(channels)).Render()
	}
}

// newBoxListCommand creates the box list command
func newBoxListCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured boxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient(cmd)
			if err != nil {
				return err
			}
			boxes, err := c.GetBoxes()
			if err != nil {
				return fmt.Errorf("failed to get boxes: %w", err)
			}

			if len(boxes) == 0 {
				if !parseable {
					pterm.Info.Println("No boxes configured")
				}
				return nil
			}

			for _, id := range sortedIDs(boxes) {
				box, _ := boxes[id].(map[string]any)
				renderBox(cmd, id, box, parseable)
				if !parseable {
					pterm.Println() // Add a blank line between boxes
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// newBoxGetCommand creates the box get command
func newBoxGetCommand() *cobra.Command {
	var parseable, refresh bool
	cmd := &cobra.Command{
		Use:   "get [id] [property]",
		Short: "Get information about a box",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient(cmd)
			if err != nil {
				return err
			}
			id, err := selectBox(c, args)
			if err != nil {
				return err
			}
			box, err := c.GetBox(id, refresh)
			if err != nil {
				return fmt.Errorf("failed to get box: %w", err)
			}

			// If a specific property was requested, only show that
			if len(args) > 1 {
				property := strings.ToLower(args[1])
				value, ok := box[property]
				if !ok || property == "channels" {
					return fmt.Errorf("invalid property: %s", property)
				}
				if parseable {
					fmt.Fprintln(cmd.OutOrStdout(), keyValues([]string{property}, box))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), value)
				}
				return nil
			}

			renderBox(cmd, id, box, parseable)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Read the channels from the hardware first")
	return cmd
}

func newBoxActionCommand(use, short string, action func(client.ClientInterface, string) (map[string]any, error)) *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient(cmd)
			if err != nil {
				return err
			}
			id, err := selectBox(c, args)
			if err != nil {
				return err
			}
			box, err := action(c, id)
			if err != nil {
				return fmt.Errorf("failed to %s box %s: %w", use, id, err)
			}
			renderBox(cmd, id, box, parseable)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

func newBoxDisconnectCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect [id]",
		Short: "Release a box's serial port",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient(cmd)
			if err != nil {
				return err
			}
			id, err := selectBox(c, args)
			if err != nil {
				return err
			}
			if err := c.DisconnectBox(id); err != nil {
				return fmt.Errorf("failed to disconnect box %s: %w", id, err)
			}
			if logger != nil {
				logger.Debug("box disconnected", "id", id)
			}
			pterm.Success.Printf("Box %s disconnected\n", id)
			return nil
		},
	}
}
