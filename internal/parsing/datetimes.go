// Package parsing converts backend strings and numbers into display values.
package parsing

import (
	"fmt"
	"strings"
	"time"

	"tubefetch/internal/domain/consts"

	"github.com/araddon/dateparse"
)

// IST is the backend's reporting zone (UTC+05:30, no DST).
var IST = time.FixedZone("IST", 5*60*60+30*60)

// ParseISTTimestamp parses timestamps such as "19 Oct 2026, 01:02:03 PM IST".
//
// The exact backend layout is tried first, then dateparse in the IST zone.
func ParseISTTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	bare := strings.TrimSpace(strings.TrimSuffix(s, "IST"))
	if t, err := time.ParseInLocation(consts.ISTLayout, bare, IST); err == nil {
		return t, nil
	}

	t, err := dateparse.ParseIn(bare, IST)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatDuration00h00m formats a duration in '10h 15m' format.
func FormatDuration00h00m(d time.Duration) string {
	if d < time.Minute {
		return "less than 1m"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

// ExpiresIn describes the time left before t, relative to now.
func ExpiresIn(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	left := t.Sub(now)
	if left <= 0 {
		return "expired"
	}
	return FormatDuration00h00m(left)
}
