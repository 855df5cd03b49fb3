// Package capture provides the frame sources the capture loop reads from: a
// still image (optionally re-read when the file changes) and a webcam driven
// through a GStreamer pipeline. It also provides the pacer the loop waits on
// between frames.
package capture

import (
	"context"
	"errors"
)

// ErrClosed is returned by Capture after the source has been closed.
var ErrClosed = errors.New("capture: source closed")

// Source yields frames one at a time. Every frame returned by Capture must be
// disposed by the caller.
type Source interface {
	// Capture blocks until a frame is available or ctx is done.
	Capture(ctx context.Context) (*Frame, error)
	// Name describes the source for the console.
	Name() string
	// Close releases the source. Safe to call more than once.
	Close() error
}

// Opener acquires a Source. Opening may block (a webcam pipeline needs to
// reach the playing state) and honours ctx.
type Opener interface {
	Open(ctx context.Context) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Source, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Source, error) {
	return f(ctx)
}
