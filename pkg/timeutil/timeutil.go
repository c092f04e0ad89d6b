// Package timeutil provides small time helpers shared across the vetting
// service. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// MinTime returns the earlier of two times.
func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxTime returns the later of two times.
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// UntilOrZero returns the duration until t, or zero when t has passed.
func UntilOrZero(now, t time.Time) time.Duration {
	if d := t.Sub(now); d > 0 {
		return d
	}
	return 0
}

// FormatDuration renders a duration in a human-friendly form for emails
// and API responses: "3d 4h", "2h 15m", "45s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// FormatTimestamp renders a timestamp for user-facing messages.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}
