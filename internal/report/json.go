package report

import (
	"encoding/json"
	"time"

	"github.com/yildizm/glimpse/internal/transcript"
	"github.com/yildizm/glimpse/internal/vision"
)

// jsonFormatter formats output as JSON
type jsonFormatter struct{}

// NewJSON creates a new JSON formatter
func NewJSON() Formatter {
	return &jsonFormatter{}
}

// ClassificationOutput is the JSON shape of a classification
type ClassificationOutput struct {
	Image     string          `json:"image"`
	Model     string          `json:"model"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Guess     *vision.Result  `json:"guess,omitempty"`
	Results   []vision.Result `json:"results"`
	ElapsedMS float64         `json:"elapsed_ms"`
	Timestamp time.Time       `json:"timestamp"`
}

// HistoryOutput is the JSON shape of a session summary
type HistoryOutput struct {
	Transcript string                  `json:"transcript"`
	Lines      int                     `json:"lines"`
	Results    int                     `json:"results"`
	Errors     []string                `json:"errors"`
	Guesses    []transcript.GuessCount `json:"guesses"`
	TimeRange  *TimeRange              `json:"time_range,omitempty"`
}

// TimeRange represents a time range
type TimeRange struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration string    `json:"duration"`
}

func (f *jsonFormatter) Format(c *Classification) ([]byte, error) {
	results := c.Results
	if results == nil {
		results = []vision.Result{}
	}

	output := &ClassificationOutput{
		Image:     c.Image,
		Model:     c.Model,
		Width:     c.Width,
		Height:    c.Height,
		Results:   results,
		ElapsedMS: float64(c.Elapsed) / float64(time.Millisecond),
		Timestamp: c.Timestamp,
	}
	if top, ok := c.Top(); ok {
		output.Guess = &top
	}

	return json.MarshalIndent(output, "", "  ")
}

func (f *jsonFormatter) FormatHistory(name string, s *transcript.Summary) ([]byte, error) {
	output := &HistoryOutput{
		Transcript: name,
		Lines:      s.Lines,
		Results:    s.Results,
		Errors:     s.Errors,
		Guesses:    s.Guesses,
	}
	if output.Errors == nil {
		output.Errors = []string{}
	}
	if output.Guesses == nil {
		output.Guesses = []transcript.GuessCount{}
	}

	if !s.First.IsZero() && !s.Last.IsZero() {
		output.TimeRange = &TimeRange{
			Start:    s.First,
			End:      s.Last,
			Duration: s.Duration().String(),
		}
	}

	return json.MarshalIndent(output, "", "  ")
}
