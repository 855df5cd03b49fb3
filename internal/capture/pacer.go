package capture

import (
	"context"
	"time"
)

// Pacer throttles the capture loop to the display refresh rate.
type Pacer interface {
	// Next blocks until the next frame slot or until ctx is done.
	Next(ctx context.Context) error
}

// TickerPacer waits on a time.Ticker running at a fixed rate.
type TickerPacer struct {
	ticker *time.Ticker
}

// NewTickerPacer returns a pacer firing hz times per second. A non-positive
// rate falls back to 60Hz.
func NewTickerPacer(hz float64) *TickerPacer {
	if hz <= 0 {
		hz = 60
	}
	interval := time.Duration(float64(time.Second) / hz)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &TickerPacer{ticker: time.NewTicker(interval)}
}

// Next waits for the next tick.
func (p *TickerPacer) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (p *TickerPacer) Stop() {
	p.ticker.Stop()
}

// PacerFunc adapts a function to the Pacer interface.
type PacerFunc func(ctx context.Context) error

// Next calls f(ctx).
func (f PacerFunc) Next(ctx context.Context) error {
	return f(ctx)
}
