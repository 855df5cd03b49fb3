package transcript

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yildizm/glimpse/internal/console"
	"github.com/yildizm/go-logparser"
)

// resultLine matches console lines of the form "<label> (<probability>)".
var resultLine = regexp.MustCompile(`^(.+) \((\d+\.\d{2})\)$`)

// GuessCount is how often a label was the top guess.
type GuessCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary describes a recorded session.
type Summary struct {
	Lines   int          `json:"lines"`
	Results int          `json:"results"`
	Errors  []string     `json:"errors,omitempty"`
	Guesses []GuessCount `json:"guesses"`
	First   time.Time    `json:"first"`
	Last    time.Time    `json:"last"`
}

// Duration is the time between the first and last record.
func (s *Summary) Duration() time.Duration {
	if s.First.IsZero() || s.Last.IsZero() {
		return 0
	}
	return s.Last.Sub(s.First)
}

// Summarize parses a transcript and tallies its guesses.
func Summarize(r io.Reader) (*Summary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("transcript: failed to read: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return &Summary{}, nil
	}

	p := logparser.NewWithFormat(logparser.FormatLogfmt)
	entries, err := p.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("transcript: failed to parse: %w", err)
	}

	summary := &Summary{}
	counts := make(map[string]int)
	for i := range entries {
		entry := &entries[i]
		summary.Lines++

		if ts := entry.Timestamp; !ts.IsZero() {
			if summary.First.IsZero() || ts.Before(summary.First) {
				summary.First = ts
			}
			if ts.After(summary.Last) {
				summary.Last = ts
			}
		}

		msg := unquote(entry.Message)
		if strings.EqualFold(entry.Level, "error") || console.IsError(msg) {
			summary.Errors = append(summary.Errors, strings.TrimPrefix(msg, console.ErrorPrefix))
			continue
		}

		if label := guessOf(entry); label != "" {
			summary.Results++
			counts[label]++
		}
	}

	for label, n := range counts {
		summary.Guesses = append(summary.Guesses, GuessCount{Label: label, Count: n})
	}
	sort.Slice(summary.Guesses, func(i, j int) bool {
		if summary.Guesses[i].Count != summary.Guesses[j].Count {
			return summary.Guesses[i].Count > summary.Guesses[j].Count
		}
		return summary.Guesses[i].Label < summary.Guesses[j].Label
	})

	return summary, nil
}

// guessOf prefers the recorded guess field and falls back to the label in a
// result line.
func guessOf(entry *logparser.LogEntry) string {
	if v, ok := entry.Fields["guess"]; ok {
		if s := strings.TrimSpace(unquote(fmt.Sprint(v))); s != "" {
			return s
		}
	}
	if m := resultLine.FindStringSubmatch(unquote(entry.Message)); m != nil {
		return m[1]
	}
	return ""
}
