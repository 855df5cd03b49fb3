// Package vision runs image classification on captured frames.
package vision

import (
	"context"
	"errors"

	"github.com/yildizm/glimpse/internal/capture"
)

// ErrNoLabels is returned when a labels file contains no labels.
var ErrNoLabels = errors.New("vision: no labels")

// Result is one class guess.
type Result struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Model classifies frames. Results are sorted by probability, highest first.
type Model interface {
	Name() string
	Classify(ctx context.Context, frame *capture.Frame) ([]Result, error)
	Close() error
}

// Loader produces a ready Model. Loading may take several seconds.
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Model, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (Model, error) {
	return f(ctx)
}
