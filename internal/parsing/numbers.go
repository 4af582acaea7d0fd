package parsing

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// CompactCount renders counts like 1234567 as "1.2M".
func CompactCount(n int64) string {
	if n < 0 {
		return "0"
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	s := humanize.SIWithDigits(float64(n), 1, "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "k", "K")
}

// SubscriberText renders an optional subscriber count for the preview panel.
func SubscriberText(n *int64) string {
	if n == nil {
		return ""
	}
	if *n == 1 {
		return "1 subscriber"
	}
	return CompactCount(*n) + " subscribers"
}

// FileSize renders a byte count for the fetched result file.
func FileSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// PercentText formats a percentage with at most one decimal place.
func PercentText(pct float64) string {
	s := strconv.FormatFloat(pct, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	return s + "%"
}
