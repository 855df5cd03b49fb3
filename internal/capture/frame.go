package capture

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one captured image. Pix is backed by a pooled buffer and belongs to
// the frame until Dispose is called; callers must not keep references to Pix
// or to the image returned by Image after that.
type Frame struct {
	// Seq is the monotonic sequence number within a source
	Seq uint64
	// Timestamp is when the frame was captured
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Pix holds RGBA pixels, 4 bytes per pixel, row-major
	Pix []byte
	// Source identifies where the frame came from (device path or file)
	Source string
	// TraceID is a unique identifier for following a frame through logs
	TraceID string

	pool     *bufferPool
	disposed atomic.Bool
}

// Image exposes the frame as an *image.RGBA sharing Pix.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Dispose returns the pixel buffer to its pool. Safe to call more than once.
func (f *Frame) Dispose() {
	if f == nil || !f.disposed.CompareAndSwap(false, true) {
		return
	}
	if f.pool != nil {
		f.pool.put(f.Pix)
	}
	f.Pix = nil
}

// Disposed reports whether Dispose has been called.
func (f *Frame) Disposed() bool {
	return f.disposed.Load()
}

// bufferPool recycles pixel buffers by size. Frames from a single source all
// share one size, so the map normally holds a single entry.
type bufferPool struct {
	mu          sync.Mutex
	pools       map[int]*sync.Pool
	outstanding atomic.Int64
}

func newBufferPool() *bufferPool {
	return &bufferPool{pools: make(map[int]*sync.Pool)}
}

func (p *bufferPool) poolFor(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sp, ok := p.pools[size]
	if !ok {
		sp = &sync.Pool{New: func() any {
			buf := make([]byte, size)
			return &buf
		}}
		p.pools[size] = sp
	}
	return sp
}

func (p *bufferPool) get(size int) []byte {
	p.outstanding.Add(1)
	return *(p.poolFor(size).Get().(*[]byte))
}

func (p *bufferPool) put(buf []byte) {
	if buf == nil {
		return
	}
	p.outstanding.Add(-1)
	p.poolFor(len(buf)).Put(&buf)
}

// newFrame allocates a frame of the given size from the pool.
func (p *bufferPool) newFrame(width, height int) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Timestamp: time.Now(),
		Pix:       p.get(width * height * 4),
		pool:      p,
	}
}

// Outstanding reports how many buffers handed out by the pool have not been
// returned yet.
func (p *bufferPool) Outstanding() int64 {
	return p.outstanding.Load()
}
