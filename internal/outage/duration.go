package outage

import (
	"fmt"
	"time"
)

// Breakdown splits d into whole minutes and the remaining whole seconds.
// Sub-second remainders are truncated and negative durations count as zero.
func Breakdown(d time.Duration) (minutes, seconds int) {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return int(total / 60), int(total % 60)
}

// FormatDuration renders d as "M minutes S seconds".
func FormatDuration(d time.Duration) string {
	m, s := Breakdown(d)
	return fmt.Sprintf("%d minutes %d seconds", m, s)
}
