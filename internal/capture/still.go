package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/yildizm/glimpse/internal/logger"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// StillConfig configures a still-image source
type StillConfig struct {
	// Path of the image file
	Path string
	// Watch re-decodes the image whenever the file is written
	Watch bool
	// Logger for reload diagnostics (optional)
	Logger *logger.Logger
}

// StillSource serves copies of one decoded image. With Watch enabled the
// image is replaced whenever the file changes on disk.
type StillSource struct {
	path string
	log  *logger.Logger
	pool *bufferPool

	mu      sync.RWMutex
	current *image.RGBA
	seq     uint64
	closed  bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStillOpener returns an Opener for a still image.
func NewStillOpener(cfg StillConfig) Opener {
	return OpenerFunc(func(ctx context.Context) (Source, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return OpenStill(cfg)
	})
}

// OpenStill decodes the image at cfg.Path and starts watching it if asked to.
func OpenStill(cfg StillConfig) (*StillSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("capture: image path is required")
	}

	img, err := decodeFile(cfg.Path)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New("capture", nil)
	}

	s := &StillSource{
		path:    cfg.Path,
		log:     log,
		pool:    newBufferPool(),
		current: img,
		done:    make(chan struct{}),
	}

	if cfg.Watch {
		if err := s.startWatch(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Capture returns a copy of the current image.
func (s *StillSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	b := s.current.Bounds()
	frame := s.pool.newFrame(b.Dx(), b.Dy())
	copy(frame.Pix, s.current.Pix)

	s.seq++
	frame.Seq = s.seq
	frame.Source = s.path
	frame.TraceID = uuid.New().String()
	return frame, nil
}

// Name returns the image file name.
func (s *StillSource) Name() string {
	return filepath.Base(s.path)
}

// Close stops watching and refuses further captures.
func (s *StillSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

// reload decodes the file again and swaps it in. A file that fails to decode
// (for example while an editor is halfway through writing it) keeps the
// previous image.
func (s *StillSource) reload() error {
	img, err := decodeFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = img
	s.mu.Unlock()
	return nil
}

// startWatch watches the directory rather than the file so that editors
// which replace the file by rename are still noticed.
func (s *StillSource) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("capture: failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("capture: failed to watch %s: %w", s.path, err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

func (s *StillSource) watchLoop() {
	defer s.wg.Done()

	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.Warn("failed to reload %s: %v", s.path, err)
				continue
			}
			s.log.Debug("reloaded %s", s.path)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error: %v", err)
		}
	}
}

// decodeFile decodes any registered image format into RGBA.
func decodeFile(path string) (*image.RGBA, error) {
	// #nosec G304 - path is supplied by the user on the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("capture: failed to decode %s: %w", path, err)
	}
	return toRGBA(img), nil
}

// toRGBA returns img as an *image.RGBA whose bounds start at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == b.Dx()*4 {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
