package vision

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadLabels reads one class label per line. Line i names class i, so blank
// lines in the middle are kept; trailing blank lines are dropped.
func LoadLabels(path string) ([]string, error) {
	// #nosec G304 - path comes from the user's configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to open labels: %w", err)
	}
	defer func() { _ = f.Close() }()

	labels, err := readLabels(f)
	if err != nil {
		return nil, fmt.Errorf("vision: %s: %w", path, err)
	}
	return labels, nil
}

func readLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	return labels, nil
}
