package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/simlab-dev/simlab/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Now()

	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"30 seconds ago": {
			time:     now.Add(-30 * time.Second),
			expected: "30s ago",
		},
		"45 minutes ago": {
			time:     now.Add(-45 * time.Minute),
			expected: "45m ago",
		},
		"5 hours ago": {
			time:     now.Add(-5*time.Hour - time.Minute),
			expected: "5h ago",
		},
		"7 days ago": {
			time:     now.Add(-7*24*time.Hour - time.Minute),
			expected: "7d ago",
		},
		"future times collapse to just now": {
			time:     now.Add(time.Hour),
			expected: "just now",
		},
		"zero time renders as a dash": {
			time:     time.Time{},
			expected: "-",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.TimeAgo(test.time))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 15, 14, 30, 45, 0, time.UTC)
	assert.Equal(t, "2026-03-15 14:30:45 UTC", printer.FormatTimestamp(ts))
}
