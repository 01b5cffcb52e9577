package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/internal/serialport"
)

var listPorts = serialport.ListPorts

// NewPortsCommand lists the serial ports on this host. It does not need the daemon.
func NewPortsCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := listPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				if !parseable {
					pterm.Info.Println("No serial ports found")
				}
				return nil
			}

			if parseable {
				for _, p := range ports {
					fmt.Fprintf(cmd.OutOrStdout(), "name=%q usb=%t vid=%q pid=%q serial_number=%q product=%q\n",
						p.Name, p.IsUSB, p.VID, p.PID, p.SerialNumber, p.Product)
				}
				return nil
			}

			table := pterm.TableData{{"Port", "USB", "VID:PID", "Serial", "Product"}}
			for _, p := range ports {
				ids := ""
				if p.VID != "" || p.PID != "" {
					ids = p.VID + ":" + p.PID
				}
				table = append(table, []string{p.Name, fmt.Sprintf("%t", p.IsUSB), ids, p.SerialNumber, p.Product})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}
