package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyrad/pkg/client"
)

// ClientContextKey holds the daemon client in a command's context. Tests
// put a mock under it before executing the root command.
var ClientContextKey = &struct{}{}

type loggerContextKey struct{}

func getClient(cmd *cobra.Command) (client.ClientInterface, error) {
	if c, ok := contextValue[client.ClientInterface](cmd, ClientContextKey); ok && c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("no skyrad client configured")
}

// getLoggerFromCmd falls back to slog.Default when the root command has not
// run yet, as in commands executed on their own.
func getLoggerFromCmd(cmd *cobra.Command) *slog.Logger {
	if l, ok := contextValue[*slog.Logger](cmd, loggerContextKey{}); ok && l != nil {
		return l
	}
	return slog.Default()
}

func contextValue[T any](cmd *cobra.Command, key any) (T, bool) {
	var zero T
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	v, ok := ctx.Value(key).(T)
	if !ok {
		return zero, false
	}
	return v, true
}
