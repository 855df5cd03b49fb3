package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/yildizm/glimpse/internal/transcript"
)

// csvFormatter formats results as CSV
type csvFormatter struct{}

// NewCSV creates a new CSV formatter
func NewCSV() Formatter {
	return &csvFormatter{}
}

func (f *csvFormatter) Format(c *Classification) ([]byte, error) {
	headers := []string{"Image", "Model", "Rank", "Label", "Probability", "Timestamp"}

	records := make([][]string, 0, len(c.Results))
	for i, r := range c.Results {
		records = append(records, []string{
			sanitizeCell(c.Image),
			c.Model,
			strconv.Itoa(i + 1),
			sanitizeCell(r.Label),
			strconv.FormatFloat(r.Probability, 'f', 4, 64),
			formatTime(c.Timestamp),
		})
	}

	return writeCSV(headers, records)
}

func (f *csvFormatter) FormatHistory(name string, s *transcript.Summary) ([]byte, error) {
	headers := []string{"Transcript", "Label", "Count", "Share"}

	records := make([][]string, 0, len(s.Guesses))
	for _, g := range s.Guesses {
		share := 0.0
		if s.Results > 0 {
			share = float64(g.Count) / float64(s.Results)
		}
		records = append(records, []string{
			sanitizeCell(name),
			sanitizeCell(g.Label),
			strconv.Itoa(g.Count),
			strconv.FormatFloat(share, 'f', 4, 64),
		})
	}

	return writeCSV(headers, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var b bytes.Buffer
	writer := csv.NewWriter(&b)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return b.Bytes(), nil
}
