package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/internal/mdns"
)

var browse = mdns.Browse

// NewDiscoverCommand browses the local network for skyrad HTTP APIs.
func NewDiscoverCommand() *cobra.Command {
	var parseable bool
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find skyrad daemons advertising over mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var spinner *pterm.SpinnerPrinter
			if !parseable {
				spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Browsing %s for %s", mdns.ServiceName, wait))
			}
			instances, err := browse(cmd.Context(), wait)
			if spinner != nil {
				_ = spinner.Stop()
			}
			if err != nil {
				return fmt.Errorf("mDNS browse failed: %w", err)
			}

			if len(instances) == 0 {
				if !parseable {
					pterm.Info.Println("No skyrad daemons found")
				}
				return nil
			}

			if parseable {
				for _, in := range instances {
					fmt.Fprintf(cmd.OutOrStdout(), "name=%q url=%q version=%q boxes=%q\n",
						in.Name, in.URL(), in.Text["version"], in.Text["boxes"])
				}
				return nil
			}

			table := pterm.TableData{{"Name", "URL", "Version", "Boxes"}}
			for _, in := range instances {
				table = append(table, []string{in.Name, in.URL(), in.Text["version"], in.Text["boxes"]})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	cmd.Flags().DurationVarP(&wait, "wait", "w", 3*time.Second, "How long to listen for answers")
	return cmd
}
