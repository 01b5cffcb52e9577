package apikey

import (
	"strconv"
	"strings"
	"time"

	ierrors "github.com/jmylchreest/skyrad/internal/errors"
)

// ParseExpiry reads a key lifetime as a Go duration ("720h"), whole days
// ("30d") or bare seconds ("90"). Empty and "0" mean the key never expires.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, ierrors.InvalidInputf("invalid expiry %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else if parsed, err := time.ParseDuration(s); err == nil {
		d = parsed
	} else if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else {
		return 0, ierrors.InvalidInputf("invalid expiry %q; use formats like 300s, 1.5h, 30d or 0 for never", s)
	}

	if d < 0 {
		return 0, ierrors.InvalidInputf("expiry %q must not be negative", s)
	}
	return d, nil
}
