package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/yildizm/glimpse/internal/transcript"
)

// markdownFormatter formats output as Markdown
type markdownFormatter struct{}

// NewMarkdown creates a new Markdown formatter
func NewMarkdown() Formatter {
	return &markdownFormatter{}
}

func (f *markdownFormatter) Format(c *Classification) ([]byte, error) {
	var b strings.Builder

	b.WriteString("# Classification Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("## Image\n\n")
	b.WriteString("| Property | Value |\n")
	b.WriteString("|----------|-------|\n")
	fmt.Fprintf(&b, "| File | %s |\n", sanitizeCell(c.Image))
	fmt.Fprintf(&b, "| Size | %dx%d |\n", c.Width, c.Height)
	fmt.Fprintf(&b, "| Model | %s |\n", sanitizeCell(c.Model))
	fmt.Fprintf(&b, "| Elapsed | %s |\n\n", formatElapsed(c.Elapsed))

	b.WriteString("## Guesses\n\n")
	if len(c.Results) == 0 {
		b.WriteString("No results.\n\n")
	} else {
		b.WriteString("| Rank | Label | Probability | Confidence |\n")
		b.WriteString("|------|-------|-------------|------------|\n")
		for i, r := range c.Results {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
				i+1, sanitizeCell(r.Label), percent(r.Probability), createConfidenceBar(r.Probability))
		}
		b.WriteString("\n")
	}

	f.writeFooter(&b)
	return []byte(b.String()), nil
}

func (f *markdownFormatter) FormatHistory(name string, s *transcript.Summary) ([]byte, error) {
	var b strings.Builder

	b.WriteString("# Session History\n\n")

	b.WriteString("## Summary\n\n")
	timeRange := "N/A"
	if d := s.Duration(); d > 0 {
		timeRange = fmt.Sprintf("%s to %s (%s)", s.First.Format("15:04:05"), s.Last.Format("15:04:05"), d)
	}

	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Transcript | %s |\n", sanitizeCell(name))
	fmt.Fprintf(&b, "| Lines | %s |\n", formatNumber(s.Lines))
	fmt.Fprintf(&b, "| Results | %s |\n", formatNumber(s.Results))
	fmt.Fprintf(&b, "| Errors | %d |\n", len(s.Errors))
	fmt.Fprintf(&b, "| Time Range | %s |\n\n", timeRange)

	if len(s.Guesses) > 0 {
		b.WriteString("## Guesses\n\n")
		b.WriteString("| Label | Count |\n")
		b.WriteString("|-------|-------|\n")
		for _, g := range s.Guesses {
			fmt.Fprintf(&b, "| %s | %d |\n", sanitizeCell(g.Label), g.Count)
		}
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("## Errors\n\n")
		b.WriteString("```\n")
		for _, e := range s.Errors {
			b.WriteString(e + "\n")
		}
		b.WriteString("```\n\n")
	}

	f.writeFooter(&b)
	return []byte(b.String()), nil
}

func (f *markdownFormatter) writeFooter(b *strings.Builder) {
	b.WriteString("---\n")
	b.WriteString("*Report generated by glimpse*\n")
}
