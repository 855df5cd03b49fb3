package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/yildizm/go-termfmt"
)

// formatNumber formats numbers with commas for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return addCommas(fmt.Sprintf("%d", n))
}

// addCommas adds commas to number strings
func addCommas(s string) string {
	if len(s) <= 3 {
		return s
	}
	return addCommas(s[:len(s)-3]) + "," + s[len(s)-3:]
}

// createConfidenceBar creates ASCII confidence bar using go-termfmt
func createConfidenceBar(confidence float64) string {
	opts := termfmt.DefaultOptions()
	return termfmt.CreateConfidenceBar(confidence, opts)
}

// percent renders a probability as a percentage with one decimal
func percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// formatElapsed rounds durations for display
func formatElapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "N/A"
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

// formatTime formats a timestamp for tables, empty when unknown
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// sanitizeCell keeps table and CSV cells on one line
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	if len(s) > 100 {
		s = s[:97] + "..."
	}

	return s
}
