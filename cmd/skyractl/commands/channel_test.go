package commands

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withConfirm replaces the safety prompt for the duration of a test.
func withConfirm(t *testing.T, answer bool, err error) *int {
	t.Helper()
	asked := 0
	old := confirmEmission
	confirmEmission = func(string) (bool, error) {
		asked++
		return answer, err
	}
	t.Cleanup(func() { confirmEmission = old })
	return &asked
}

func TestChannelGet(t *testing.T) {
	c := newMockClient()
	out, err := execute(t, c, "channel", "get", "bench", "561", "-p")
	require.NoError(t, err)
	assert.Equal(t, []string{"channel bench 561"}, c.calls)
	assert.Equal(t,
		"box=\"bench\" name=\"561\" index=\"1\" wavelength_nm=\"561\" power_mw=0 max_power_mw=55 on=false active=false\n",
		out)

	c = newMockClient()
	out, err = execute(t, c, "ch", "get", "bench", "--refresh", "-p")
	require.NoError(t, err)
	assert.Equal(t, []string{"get bench refresh"}, c.calls)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	_, err = execute(t, newMockClient(), "channel", "get", "bench", "405")
	assert.Error(t, err)
}

func TestChannelSet(t *testing.T) {
	t.Run("enabling with --yes skips the prompt", func(t *testing.T) {
		asked := withConfirm(t, false, nil)
		c := newMockClient()
		out, err := execute(t, c, "channel", "set", "bench", "561", "--on", "--active", "--power", "8", "--yes", "-p")
		require.NoError(t, err)
		assert.Equal(t, 0, *asked)
		assert.Equal(t, []string{"set bench 561", "channel bench 561"}, c.calls)
		require.NotNil(t, c.update.PowerMW)
		assert.Equal(t, 8.0, *c.update.PowerMW)
		assert.True(t, *c.update.On)
		assert.True(t, *c.update.Active)
		assert.Contains(t, out, "power_mw=8 max_power_mw=55 on=true active=true")
	})

	t.Run("enabling asks and honours a refusal", func(t *testing.T) {
		asked := withConfirm(t, false, nil)
		c := newMockClient()
		_, err := execute(t, c, "channel", "set", "bench", "561", "--on")
		require.NoError(t, err)
		assert.Equal(t, 1, *asked)
		assert.Empty(t, c.calls, "nothing is sent when the operator declines")
	})

	t.Run("enabling proceeds after confirmation", func(t *testing.T) {
		asked := withConfirm(t, true, nil)
		c := newMockClient()
		_, err := execute(t, c, "channel", "set", "bench", "561", "--power", "2.5")
		require.NoError(t, err)
		assert.Equal(t, 1, *asked)
		assert.Nil(t, c.update.On)
		assert.Nil(t, c.update.Active)
		assert.Equal(t, 2.5, *c.update.PowerMW)
	})

	t.Run("prompt failure is an error", func(t *testing.T) {
		withConfirm(t, false, errors.New("no tty"))
		_, err := execute(t, newMockClient(), "channel", "set", "bench", "561", "--active")
		assert.ErrorContains(t, err, "no tty")
	})

	t.Run("disabling does not ask", func(t *testing.T) {
		asked := withConfirm(t, false, nil)
		c := newMockClient()
		_, err := execute(t, c, "channel", "set", "bench", "488", "--power", "0", "--active=false", "--on=false", "-p")
		require.NoError(t, err)
		assert.Equal(t, 0, *asked)
		assert.False(t, *c.update.On)
		assert.False(t, *c.update.Active)
		assert.Equal(t, 0.0, *c.update.PowerMW)
	})

	t.Run("no flags", func(t *testing.T) {
		c := newMockClient()
		_, err := execute(t, c, "channel", "set", "bench", "488")
		assert.ErrorContains(t, err, "nothing to set")
		assert.Empty(t, c.calls)
	})

	t.Run("negative power", func(t *testing.T) {
		c := newMockClient()
		_, err := execute(t, c, "channel", "set", "bench", "488", "--power=-1", "--yes")
		assert.Error(t, err)
		assert.Empty(t, c.calls)
	})
}
