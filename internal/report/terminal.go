package report

import (
	"fmt"
	"strings"

	"github.com/yildizm/glimpse/internal/transcript"
	"github.com/yildizm/go-termfmt"
)

// maxGuesses bounds the guess list in the history view
const maxGuesses = 5

// terminalFormatter formats output as plain text for terminal display using go-termfmt
type terminalFormatter struct {
	opts *termfmt.TerminalOptions
}

// NewTerminal creates a new terminal formatter
func NewTerminal(color, emoji bool) Formatter {
	opts := termfmt.DefaultOptions()
	opts.Color = color
	opts.Emoji = emoji
	return &terminalFormatter{opts: opts}
}

func (f *terminalFormatter) Format(c *Classification) ([]byte, error) {
	var b strings.Builder

	f.writeHeader(&b, "Classification")
	f.writeImageDetails(&b, c)
	f.writeGuesses(&b, c)

	return []byte(b.String()), nil
}

func (f *terminalFormatter) FormatHistory(name string, s *transcript.Summary) ([]byte, error) {
	var b strings.Builder

	f.writeHeader(&b, "Session History")
	f.writeSessionStatistics(&b, name, s)
	f.writeTopGuesses(&b, s)
	if len(s.Errors) > 0 {
		f.writeErrors(&b, s.Errors)
	}

	return []byte(b.String()), nil
}

// writeImageDetails writes the image and model details as a tree
func (f *terminalFormatter) writeImageDetails(b *strings.Builder, c *Classification) {
	symbol := termfmt.GetEmoji("statistics", f.opts)
	b.WriteString(symbol + " Image\n")

	items := []termfmt.TreeItem{
		{Label: "File", Value: c.Image},
		{Label: "Size", Value: fmt.Sprintf("%dx%d", c.Width, c.Height)},
		{Label: "Model", Value: c.Model},
		{Label: "Elapsed", Value: formatElapsed(c.Elapsed), Last: true},
	}

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

// writeGuesses writes each result with a confidence bar
func (f *terminalFormatter) writeGuesses(b *strings.Builder, c *Classification) {
	symbol := termfmt.GetEmoji("insights", f.opts)
	b.WriteString(symbol + " Guesses\n")

	if len(c.Results) == 0 {
		b.WriteString("└─ no results\n")
		return
	}

	items := make([]termfmt.TreeItem, 0, len(c.Results))
	for i, r := range c.Results {
		bar := termfmt.CreateConfidenceBar(r.Probability, f.opts)
		items = append(items, termfmt.TreeItem{
			Label: r.Label,
			Value: bar + " " + percent(r.Probability),
			Last:  i == len(c.Results)-1,
		})
	}

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n")
}

// writeSessionStatistics writes counts and the time range of a transcript
func (f *terminalFormatter) writeSessionStatistics(b *strings.Builder, name string, s *transcript.Summary) {
	symbol := termfmt.GetEmoji("statistics", f.opts)
	b.WriteString(symbol + " Statistics\n")

	items := []termfmt.TreeItem{
		{Label: "Transcript", Value: name},
		{Label: "Lines", Value: formatNumber(s.Lines)},
		{Label: "Results", Value: formatNumber(s.Results)},
		{Label: "Errors", Value: formatNumber(len(s.Errors))},
	}

	if d := s.Duration(); d > 0 {
		items = append(items, termfmt.TreeItem{Label: "Duration", Value: d.String(), Last: true})
	} else {
		items = append(items, termfmt.TreeItem{Label: "Time Range", Value: "N/A", Last: true})
	}

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

// writeTopGuesses writes the most frequent guesses with their share of results
func (f *terminalFormatter) writeTopGuesses(b *strings.Builder, s *transcript.Summary) {
	opts := termfmt.DefaultOptions()
	opts.Emoji = false
	symbol := termfmt.GetEmoji("help", opts)
	b.WriteString(symbol + " Top Guesses\n")

	n := len(s.Guesses)
	if n > maxGuesses {
		n = maxGuesses
	}

	for i := 0; i < n; i++ {
		g := s.Guesses[i]
		share := 0.0
		if s.Results > 0 {
			share = float64(g.Count) / float64(s.Results)
		}
		branch := "├─"
		if i == n-1 {
			branch = "└─"
		}
		fmt.Fprintf(b, "%s %s %s (%d)\n", branch, termfmt.CreateConfidenceBar(share, f.opts), g.Label, g.Count)
	}
	b.WriteString("\n")
}

// writeErrors lists the error lines recorded in the session
func (f *terminalFormatter) writeErrors(b *strings.Builder, errs []string) {
	symbol := termfmt.GetEmoji("error", f.opts)
	b.WriteString(symbol + " Errors\n")

	for _, e := range errs {
		b.WriteString("• " + e + "\n")
	}
}

// writeHeader writes a header with box drawing
func (f *terminalFormatter) writeHeader(b *strings.Builder, header string) {
	headerLen := len(header)

	b.WriteString("╔" + strings.Repeat("═", headerLen+2) + "╗\n")
	b.WriteString("║ " + header + " ║\n")
	b.WriteString("╚" + strings.Repeat("═", headerLen+2) + "╝\n\n")
}
