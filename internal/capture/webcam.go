package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"github.com/yildizm/glimpse/internal/logger"
)

// WebcamConfig configures a webcam source
type WebcamConfig struct {
	// Device is the V4L2 device path, e.g. /dev/video0
	Device string
	// FacingMode is recorded for display only; the device path decides
	FacingMode string
	// Width and Height of delivered frames
	Width  int
	Height int
	// StartTimeout bounds how long Open waits for the pipeline to start
	StartTimeout time.Duration
	// Logger for pipeline diagnostics (optional)
	Logger *logger.Logger
}

// WebcamSource delivers frames from a v4l2src pipeline:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGBA) → appsink
//
// The appsink keeps only the latest buffer, and frames the loop has not
// picked up yet are dropped rather than queued.
type WebcamSource struct {
	cfg  WebcamConfig
	log  *logger.Logger
	pool *bufferPool

	pipeline *gst.Pipeline
	sink     *app.Sink

	frames  chan *Frame
	seq     atomic.Uint64
	dropped atomic.Uint64

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewWebcamOpener returns an Opener for a webcam.
func NewWebcamOpener(cfg WebcamConfig) Opener {
	return OpenerFunc(func(ctx context.Context) (Source, error) {
		return OpenWebcam(ctx, cfg)
	})
}

// OpenWebcam builds the pipeline and waits until it is playing.
func OpenWebcam(ctx context.Context, cfg WebcamConfig) (*WebcamSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("capture: webcam device is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("capture: invalid webcam size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 5 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New("capture", nil)
	}

	s := &WebcamSource{
		cfg:    cfg,
		log:    log,
		pool:   newBufferPool(),
		frames: make(chan *Frame, 1),
		done:   make(chan struct{}),
	}

	if err := s.buildPipeline(); err != nil {
		return nil, err
	}

	s.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	if err := s.waitPlaying(ctx); err != nil {
		_ = s.pipeline.SetState(gst.StateNull)
		return nil, err
	}

	s.wg.Add(1)
	go s.watchBus()

	log.InfoWithFields("webcam started", []logger.Field{
		logger.F("device", cfg.Device),
		logger.F("facing_mode", cfg.FacingMode),
		logger.F("resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)),
	})

	return s, nil
}

func (s *WebcamSource) buildPipeline() error {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("capture: failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("capture: failed to create v4l2src: %w", err)
	}
	if err := src.SetProperty("device", s.cfg.Device); err != nil {
		return fmt.Errorf("capture: failed to set device: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("capture: failed to create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("capture: failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("capture: failed to create capsfilter: %w", err)
	}
	capsStr := fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d", s.cfg.Width, s.cfg.Height)
	if err := capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr)); err != nil {
		return fmt.Errorf("capture: failed to set caps: %w", err)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("capture: failed to create appsink: %w", err)
	}
	_ = sink.SetProperty("sync", false)
	_ = sink.SetProperty("max-buffers", 1)
	_ = sink.SetProperty("drop", true)

	if err := pipeline.AddMany(src, converter, scaler, capsfilter, sink.Element); err != nil {
		return fmt.Errorf("capture: failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, sink.Element); err != nil {
		return fmt.Errorf("capture: failed to link pipeline: %w", err)
	}

	s.pipeline = pipeline
	s.sink = sink
	return nil
}

// waitPlaying polls the bus until the pipeline reports PLAYING, an error, or
// the start timeout.
func (s *WebcamSource) waitPlaying(ctx context.Context) error {
	bus := s.pipeline.GetPipelineBus()
	deadline := time.Now().Add(s.cfg.StartTimeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("capture: could not open %s: %s", s.cfg.Device, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() != s.pipeline.GetName() {
				continue
			}
			if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
				return nil
			}
		}
	}

	return fmt.Errorf("capture: timed out after %s waiting for %s", s.cfg.StartTimeout, s.cfg.Device)
}

// watchBus records the first pipeline error so that Capture can report it.
func (s *WebcamSource) watchBus() {
	defer s.wg.Done()

	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.done:
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			s.fail(fmt.Errorf("capture: end of stream from %s", s.cfg.Device))
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			s.log.ErrorWithFields("pipeline error", []logger.Field{
				logger.F("device", s.cfg.Device),
				logger.F("debug", gerr.DebugString()),
			})
			s.fail(fmt.Errorf("capture: %s: %s", s.cfg.Device, gerr.Error()))
			return
		}
	}
}

func (s *WebcamSource) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *WebcamSource) failure() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// onNewSample copies the mapped buffer into a pooled frame. GStreamer reuses
// its buffers, so the data cannot be handed out directly.
func (s *WebcamSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	frame := s.pool.newFrame(s.cfg.Width, s.cfg.Height)
	copy(frame.Pix, data)
	buffer.Unmap()

	frame.Seq = s.seq.Add(1)
	frame.Source = s.cfg.Device
	frame.TraceID = uuid.New().String()

	if !s.deliver(frame) {
		return gst.FlowEOS
	}
	return gst.FlowOK
}

// deliver hands frame to Capture, or drops it when the previous frame has not
// been picked up. It returns false once the source is closed.
func (s *WebcamSource) deliver(frame *Frame) bool {
	select {
	case <-s.done:
		frame.Dispose()
		return false
	default:
	}

	select {
	case s.frames <- frame:
	default:
		s.dropped.Add(1)
		frame.Dispose()
	}
	return true
}

// Capture waits for the next frame from the camera.
func (s *WebcamSource) Capture(ctx context.Context) (*Frame, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	case frame := <-s.frames:
		return frame, nil
	}
}

// Name returns the device path.
func (s *WebcamSource) Name() string {
	return s.cfg.Device
}

// Dropped reports how many frames were discarded because the loop was busy.
func (s *WebcamSource) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the pipeline and releases any frame still waiting.
func (s *WebcamSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()

		if s.pipeline != nil {
			if serr := s.pipeline.SetState(gst.StateNull); serr != nil {
				err = fmt.Errorf("capture: failed to stop pipeline: %w", serr)
			}
		}

		select {
		case frame := <-s.frames:
			frame.Dispose()
		default:
		}

		s.log.DebugWithFields("webcam stopped", []logger.Field{
			logger.F("device", s.cfg.Device),
			logger.F("dropped", s.dropped.Load()),
		})
	})
	return err
}
