package printer

import (
	"fmt"
	"time"
)

// TimeAgo returns a compact relative age string.
// Examples: "5s ago", "2m ago", "3h ago", "4d ago".
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := time.Since(t)
	if diff < 0 {
		return "just now"
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
