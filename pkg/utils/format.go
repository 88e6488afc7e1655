package utils

import (
	"fmt"
	"time"
)

// FormatSize renders a byte count in the largest binary unit that keeps
// the value below 1024.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders a duration in a compact h/m/s form for log and
// status output.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, int(s.Seconds()))
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, int(s.Seconds()))
	}
	return fmt.Sprintf("%ds", int(s.Seconds()))
}
