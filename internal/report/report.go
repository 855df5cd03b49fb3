// Package report renders classification results and session summaries for
// the non-interactive commands.
package report

import (
	"fmt"
	"time"

	"github.com/yildizm/glimpse/internal/transcript"
	"github.com/yildizm/glimpse/internal/vision"
)

// Classification is the outcome of classifying a single image.
type Classification struct {
	Image     string          `json:"image"`
	Model     string          `json:"model"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Results   []vision.Result `json:"results"`
	Elapsed   time.Duration   `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// Top returns the most probable result, if any.
func (c *Classification) Top() (vision.Result, bool) {
	if c == nil || len(c.Results) == 0 {
		return vision.Result{}, false
	}
	return c.Results[0], true
}

// Formatter defines the interface for output formatting
type Formatter interface {
	Format(c *Classification) ([]byte, error)
	FormatHistory(name string, s *transcript.Summary) ([]byte, error)
}

// New returns the formatter for format. color and emoji only affect text.
func New(format string, color, emoji bool) (Formatter, error) {
	switch format {
	case "json":
		return NewJSON(), nil
	case "markdown":
		return NewMarkdown(), nil
	case "csv":
		return NewCSV(), nil
	case "text", "terminal", "":
		return NewTerminal(color, emoji), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
