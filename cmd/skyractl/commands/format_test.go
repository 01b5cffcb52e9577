package commands

import (
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func TestFormatHelpers(t *testing.T) {
	pterm.DisableColor()
	t.Cleanup(pterm.EnableColor)

	ts := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"timestamp string", formatTimestamp("2026-03-01T10:00:00Z"), ts.Format(time.RFC1123)},
		{"timestamp value", formatTimestamp(ts), ts.Format(time.RFC1123)},
		{"zero timestamp", formatTimestamp("0001-01-01T00:00:00Z"), "Never"},
		{"missing timestamp", formatTimestamp(nil), "Never"},
		{"milliwatts", formatMilliwatts(7.96), "8.0 mW"},
		{"milliwatts missing", formatMilliwatts(nil), "-"},
		{"wavelength", formatWavelength("561"), "561 nm"},
		{"wavelength unknown", formatWavelength("0"), "-"},
		{"on", onOff(true), "on"},
		{"off", onOff(nil), "off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestBoxChannels(t *testing.T) {
	box := map[string]any{"channels": []any{map[string]any{"name": "488"}, "junk"}}
	chs := boxChannels(box)
	assert.Len(t, chs, 1)
	assert.Empty(t, boxChannels(map[string]any{}))
}
