package skyra

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// roundTenth rounds a milliwatt value to 0.1 mW.
func roundTenth(mw float64) float64 {
	r := math.Round(mw*10) / 10
	if r == 0 {
		// drop negative zero
		return 0
	}
	return r
}

// wattsToMilliwatts converts a device reading to mW at 0.1 mW resolution.
func wattsToMilliwatts(w float64) float64 {
	return roundTenth(w * 1e3)
}

// wattsToken formats a mW request as the watts argument of a power command.
// The result always carries a fractional part: 50 -> "0.05", 0 -> "0.0".
func wattsToken(mw float64) string {
	tenths := math.Round(mw * 10)
	if tenths == 0 {
		tenths = 0
	}
	s := strconv.FormatFloat(tenths/1e4, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func parseWatts(reply string) (float64, error) {
	w, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, fmt.Errorf("%w: expected watts, got %q", ErrMalformedReply, reply)
	}
	return w, nil
}

// parseFlag reads an integer reply as a boolean; any non-zero value is true.
func parseFlag(reply string) (bool, error) {
	n, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return false, fmt.Errorf("%w: expected integer flag, got %q", ErrMalformedReply, reply)
	}
	return n != 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
