package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode image: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close image: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Failed to move image into place: %v", err)
	}
}

func TestStillSourceCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	writePNG(t, path, 4, 3, color.RGBA{R: 200, G: 10, B: 20, A: 255})

	src, err := OpenStill(StillConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenStill failed: %v", err)
	}
	defer src.Close()

	if src.Name() != "cat.png" {
		t.Errorf("Expected name cat.png, got %s", src.Name())
	}

	ctx := context.Background()
	first, err := src.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	second, err := src.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if first.Width != 4 || first.Height != 3 {
		t.Errorf("Expected 4x3 frame, got %dx%d", first.Width, first.Height)
	}
	if len(first.Pix) != 4*3*4 {
		t.Errorf("Expected %d bytes, got %d", 4*3*4, len(first.Pix))
	}
	if got := first.Image().RGBAAt(3, 2); got.R != 200 || got.G != 10 || got.B != 20 {
		t.Errorf("Unexpected pixel %v", got)
	}
	if second.Seq != first.Seq+1 {
		t.Errorf("Expected increasing sequence numbers, got %d then %d", first.Seq, second.Seq)
	}
	if first.TraceID == "" || first.TraceID == second.TraceID {
		t.Errorf("Expected distinct trace IDs, got %q and %q", first.TraceID, second.TraceID)
	}

	// Frames are independent copies
	first.Pix[0] = 0
	if second.Pix[0] != 200 {
		t.Errorf("Expected frames not to share pixels")
	}

	if got := src.pool.Outstanding(); got != 2 {
		t.Errorf("Expected 2 outstanding buffers, got %d", got)
	}
	first.Dispose()
	second.Dispose()
	second.Dispose()
	if got := src.pool.Outstanding(); got != 0 {
		t.Errorf("Expected 0 outstanding buffers after dispose, got %d", got)
	}
	if !first.Disposed() || first.Pix != nil {
		t.Errorf("Expected disposed frame to drop its pixels")
	}
}

func TestStillSourceClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dog.png")
	writePNG(t, path, 2, 2, color.RGBA{A: 255})

	src, err := OpenStill(StillConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenStill failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if _, err := src.Capture(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestStillSourceCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dog.png")
	writePNG(t, path, 2, 2, color.RGBA{A: 255})

	src, err := OpenStill(StillConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenStill failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if got := src.pool.Outstanding(); got != 0 {
		t.Errorf("Expected no buffers taken, got %d", got)
	}
}

func TestOpenStillErrors(t *testing.T) {
	if _, err := OpenStill(StillConfig{}); err == nil {
		t.Error("Expected error for empty path")
	}

	if _, err := OpenStill(StillConfig{Path: filepath.Join(t.TempDir(), "missing.png")}); err == nil {
		t.Error("Expected error for missing file")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := OpenStill(StillConfig{Path: garbage}); err == nil {
		t.Error("Expected error for undecodable file")
	}
}

func TestStillOpenerHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	writePNG(t, path, 2, 2, color.RGBA{A: 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStillOpener(StillConfig{Path: path}).Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	src, err := NewStillOpener(StillConfig{Path: path}).Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = src.Close()
}

func TestStillSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	writePNG(t, path, 2, 2, color.RGBA{R: 10, A: 255})

	src, err := OpenStill(StillConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenStill failed: %v", err)
	}
	defer src.Close()

	writePNG(t, path, 3, 3, color.RGBA{R: 250, A: 255})
	if err := src.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	frame, err := src.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	defer frame.Dispose()
	if frame.Width != 3 || frame.Pix[0] != 250 {
		t.Errorf("Expected reloaded image, got width %d red %d", frame.Width, frame.Pix[0])
	}
}

func TestStillSourceWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	writePNG(t, path, 2, 2, color.RGBA{R: 10, A: 255})

	src, err := OpenStill(StillConfig{Path: path, Watch: true})
	if err != nil {
		t.Fatalf("OpenStill failed: %v", err)
	}
	defer src.Close()

	writePNG(t, path, 2, 2, color.RGBA{R: 99, A: 255})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame, err := src.Capture(context.Background())
		if err != nil {
			t.Fatalf("Capture failed: %v", err)
		}
		red := frame.Pix[0]
		frame.Dispose()
		if red == 99 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("Expected watched image to be reloaded")
}

func TestBufferPoolReuse(t *testing.T) {
	pool := newBufferPool()

	a := pool.newFrame(8, 8)
	b := pool.newFrame(2, 2)
	if len(a.Pix) != 256 || len(b.Pix) != 16 {
		t.Fatalf("Unexpected buffer sizes %d and %d", len(a.Pix), len(b.Pix))
	}
	if pool.Outstanding() != 2 {
		t.Errorf("Expected 2 outstanding, got %d", pool.Outstanding())
	}

	a.Dispose()
	b.Dispose()
	if pool.Outstanding() != 0 {
		t.Errorf("Expected 0 outstanding, got %d", pool.Outstanding())
	}

	var nilFrame *Frame
	nilFrame.Dispose()
}

func TestTickerPacer(t *testing.T) {
	p := NewTickerPacer(200)
	defer p.Stop()

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Next(ctx); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Expected pacing of roughly 5ms per tick, took %s", elapsed)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewTickerPacer(0.01)
	defer slow.Stop()
	if err := slow.Next(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
