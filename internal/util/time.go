package util

import (
	"fmt"
	"time"
)

// HumanTimeFormat is the layout used in notification bodies.
const HumanTimeFormat = "2006-01-02 15:04:05 MST"

// RFC3339Now returns the current UTC time formatted as RFC3339.
func RFC3339Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// HumanTime returns the current local time in a readable format.
func HumanTime() string {
	return time.Now().Format(HumanTimeFormat)
}

// FormatHumanTime reformats an RFC3339 timestamp for display.
// Values that do not parse are returned unchanged.
func FormatHumanTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format(HumanTimeFormat)
}

// FormatElapsed renders a duration as "1h 2m 3s".
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
