package status

import (
	"fmt"
	"time"
)

// ClosedMarker replaces the countdown once registration has ended.
const ClosedMarker = "Registration closed"

const day = 24 * time.Hour

// Remaining returns the time left until registrationEnd and false once it is
// zero or negative.
func Remaining(now, registrationEnd time.Time) (time.Duration, bool) {
	d := registrationEnd.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// Countdown renders "{d}d {h}h {m}m {s}s" or ClosedMarker.
func Countdown(now, registrationEnd time.Time) string {
	d, open := Remaining(now, registrationEnd)
	if !open {
		return ClosedMarker
	}
	return FormatRemaining(d)
}

// FormatRemaining floors each unit; sub-second remainders are dropped.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / day
	hours := (d % day) / time.Hour
	minutes := (d % time.Hour) / time.Minute
	seconds := (d % time.Minute) / time.Second
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
