package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/internal/apikey"
	"github.com/jmylchreest/skyrad/pkg/client"
)

// NewAPIKeyCommand groups the commands that manage keys for the HTTP API.
func NewAPIKeyCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "api-key",
		Short:   "Manage keys accepted by the skyrad HTTP API",
		Aliases: []string{"api"},
	}

	cmd.AddCommand(
		newAPIKeyListCommand(),
		newAPIKeyAddCommand(),
		newAPIKeyDeleteCommand(logger),
		newAPIKeySetEnabledCommand(),
	)

	return cmd
}

func obfuscateAPIKey(key string) string {
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return key
}

// keySecret returns the stored key string; HTTP listings only carry the id.
func keySecret(k map[string]any) string {
	if s, _ := k["key"].(string); s != "" {
		return s
	}
	s, _ := k["id"].(string)
	return s
}

func newAPIKeyListCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := getClient(cmd)
			if err != nil {
				return err
			}
			keys, err := apiClient.ListAPIKeys()
			if err != nil {
				return fmt.Errorf("listing keys: %w", err)
			}

			if len(keys) == 0 {
				if !parseable {
					pterm.Info.Println("skyrad has no API keys; create one with `skyractl api-key add`.")
				}
				return nil
			}

			if parseable {
				for _, k := range keys {
					name, _ := k["name"].(string)
					disabled, _ := k["disabled"].(bool)
					fmt.Fprintf(cmd.OutOrStdout(), "name=%s key=%s created_at=%d expires_at=%d last_used_at=%d enabled=%t\n",
						strconv.Quote(name), strconv.Quote(keySecret(k)),
						unixTimestamp(k["created_at"]), unixTimestamp(k["expires_at"]), unixTimestamp(k["last_used_at"]),
						!disabled)
				}
				return nil
			}

			table := pterm.TableData{{"Name", "Key", "Created", "Expires", "Last used", "Enabled"}}
			for _, k := range keys {
				table = append(table, keyRow(k))
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Print one key=value line per key")
	return cmd
}

func newAPIKeyAddCommand() *cobra.Command {
	var name, expiresIn string

	cmd := &cobra.Command{
		Use:   "add [name] [duration]",
		Short: "Create an API key, optionally expiring after a duration such as 30d or 720h",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := getClient(cmd)
			if err != nil {
				return err
			}

			// argument, then --name, then a prompt
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				name, err = pterm.DefaultInteractiveTextInput.WithMultiLine(false).Show("Key name (e.g. home-assistant)")
				if err != nil {
					return fmt.Errorf("reading key name: %w", err)
				}
				if name == "" {
					return fmt.Errorf("a key name is required")
				}
			}
			if len(args) > 1 {
				expiresIn = args[1]
			}

			ttl, err := apikey.ParseExpiry(expiresIn)
			if err != nil {
				return err
			}
			created, err := apiClient.AddAPIKey(name, ttl)
			if err != nil {
				return fmt.Errorf("creating key: %w", err)
			}

			keyName, _ := created["name"].(string)
			pterm.Success.Printf("Created API key %q\n", keyName)
			pterm.Warning.Println("Key:", keySecret(created))
			pterm.Warning.Println("skyrad will not show this key again.")
			pterm.Info.Println("Expires:", formatTimestamp(created["expires_at"]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Key name, used when no name argument is given")
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "Lifetime such as 720h or 30d; empty or 0 never expires")
	return cmd
}

// selectKey prompts for one of the stored keys and returns its secret.
func selectKey(apiClient client.ClientInterface, prompt string) (string, error) {
	keys, err := apiClient.ListAPIKeys()
	if err != nil {
		return "", fmt.Errorf("listing keys: %w", err)
	}
	if len(keys) == 0 {
		return "", nil
	}
	options := make([]string, 0, len(keys))
	byOption := make(map[string]string, len(keys))
	for _, k := range keys {
		name, _ := k["name"].(string)
		disabled, _ := k["disabled"].(bool)
		option := fmt.Sprintf("%s  %s  %s", name, obfuscateAPIKey(keySecret(k)), enabledLabel(!disabled))
		options = append(options, option)
		byOption[option] = keySecret(k)
	}
	selected, err := pterm.DefaultInteractiveSelect.WithDefaultText(prompt).WithOptions(options).Show()
	if err != nil {
		return "", fmt.Errorf("selecting key: %w", err)
	}
	return byOption[selected], nil
}

func newAPIKeyDeleteCommand(logger *slog.Logger) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Delete an API key; clients using it are rejected immediately",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := getClient(cmd)
			if err != nil {
				return err
			}

			var key string
			if len(args) > 0 {
				key = args[0]
			} else if key, err = selectKey(apiClient, "Select API key to delete"); err != nil {
				return err
			}
			if key == "" {
				pterm.Info.Println("skyrad has no API keys to delete.")
				return nil
			}

			if !yes {
				confirm, _ := pterm.DefaultInteractiveConfirm.
					WithDefaultText(fmt.Sprintf("Delete API key %s?", obfuscateAPIKey(key))).
					WithDefaultValue(false).
					Show()
				if !confirm {
					pterm.Info.Println("Kept.")
					return nil
				}
			}

			if err := apiClient.DeleteAPIKey(key); err != nil {
				return fmt.Errorf("deleting key: %w", err)
			}
			logger.Debug("apikey: deleted", "key", obfuscateAPIKey(key))
			pterm.Success.Printf("Deleted API key %s\n", obfuscateAPIKey(key))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func newAPIKeySetEnabledCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-enabled [key_or_name] [true|false]",
		Short: "Enable or disable an API key",
		Long: "Enable or disable an API key without deleting it.\n" +
			"Missing arguments are asked for interactively.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := getClient(cmd)
			if err != nil {
				return err
			}

			var key string
			var enabled, statusGiven bool
			if len(args) > 0 {
				key = args[0]
			}
			if len(args) > 1 {
				if enabled, err = parseEnabled(args[1]); err != nil {
					return err
				}
				statusGiven = true
			}

			if key == "" {
				if key, err = selectKey(apiClient, "Select API key to update"); err != nil {
					return err
				}
				if key == "" {
					pterm.Info.Println("skyrad has no API keys.")
					return nil
				}
			}
			if !statusGiven {
				selected, err := pterm.DefaultInteractiveSelect.WithOptions([]string{enabledLabel(true), enabledLabel(false)}).WithDefaultText("New state").Show()
				if err != nil {
					return fmt.Errorf("selecting state: %w", err)
				}
				enabled = selected == enabledLabel(true)
			}

			updated, err := apiClient.SetAPIKeyDisabledStatus(key, !enabled)
			if err != nil {
				return fmt.Errorf("updating key: %w", err)
			}
			name, _ := updated["name"].(string)
			disabled, _ := updated["disabled"].(bool)
			pterm.Success.Printf("API key %q is now %s\n", name, strings.ToLower(enabledLabel(!disabled)))
			return nil
		},
	}
	return cmd
}

func keyRow(k map[string]any) []string {
	name, _ := k["name"].(string)
	disabled, _ := k["disabled"].(bool)
	return []string{
		name,
		obfuscateAPIKey(keySecret(k)),
		formatTimestamp(k["created_at"]),
		formatTimestamp(k["expires_at"]),
		formatTimestamp(k["last_used_at"]),
		enabledLabel(!disabled),
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "Enabled"
	}
	return "Disabled"
}

func parseEnabled(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "on", "enable", "enabled":
		return true, nil
	case "false", "off", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("state %q must be enabled or disabled", s)
}
