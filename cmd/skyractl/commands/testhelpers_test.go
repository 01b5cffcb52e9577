package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/skyrad/pkg/client"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureStdout runs f with os.Stdout and pterm tables redirected into a
// pipe and returns the plain text written, colour codes removed.
func captureStdout(f func()) string {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}

	stdout, color, output, tableWriter := os.Stdout, pterm.PrintColor, pterm.Output, pterm.DefaultTable.Writer
	os.Stdout, pterm.PrintColor, pterm.Output, pterm.DefaultTable.Writer = w, false, true, w
	defer func() {
		os.Stdout, pterm.PrintColor, pterm.Output, pterm.DefaultTable.Writer = stdout, color, output, tableWriter
	}()

	copied := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		copied <- buf.String()
	}()

	f()
	_ = w.Close()
	return ansiEscape.ReplaceAllString(<-copied, "")
}

// execute runs skyractl args against c and returns everything printed.
func execute(t *testing.T, c client.ClientInterface, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(testLogger(), "/nonexistent/skyrad.sock", "1.0.0", "abc123", "2026-01-01")
	require.NotNil(t, root)
	root.SetArgs(args)
	root.SetErr(io.Discard)

	var err error
	out := captureStdout(func() {
		err = root.ExecuteContext(context.WithValue(context.Background(), ClientContextKey, c))
	})
	return out, err
}
