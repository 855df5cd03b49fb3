// Package loop drives the capture, classify and render cycle.
//
// Run never touches console state. It emits console events to a Sink, and the
// owner of the state (the TUI) applies them.
package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/console"
	"github.com/yildizm/glimpse/internal/logger"
	"github.com/yildizm/glimpse/internal/monitor"
	"github.com/yildizm/glimpse/internal/vision"
)

// Sink receives console events. Events passed in one call belong together
// (a result line and its guess) and should be applied as one update.
type Sink interface {
	Emit(events ...console.Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(events ...console.Event)

// Emit calls f(events...).
func (f SinkFunc) Emit(events ...console.Event) {
	f(events...)
}

// Tee fans events out to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	var active []Sink
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(events ...console.Event) {
		for _, s := range active {
			s.Emit(events...)
		}
	})
}

// ResultObserver sees every classification before its frame is disposed.
// Implementations must not retain the frame.
type ResultObserver interface {
	ObserveResults(frame *capture.Frame, results []vision.Result)
}

// Config wires the loop to its collaborators.
type Config struct {
	// ModelName is shown while the model loads
	ModelName string
	Loader    vision.Loader
	Opener    capture.Opener
	Pacer     capture.Pacer
	Sink      Sink
	Observers []ResultObserver
	// Once classifies a single frame and writes the full result list as
	// indented JSON, one console line per JSON line.
	Once bool
	// Monitor records capture and classification timings (optional)
	Monitor *monitor.Monitor
	Logger  *logger.Logger
}

// Startup lines
const (
	LineHello  = "Hello"
	LineLoaded = "Successfully loaded model"
)

// LoadingLine is written before the model starts loading.
func LoadingLine(modelName string) string {
	return "Loading " + modelName + ".."
}

// FormatResult renders a result as "<label> (<probability>)".
func FormatResult(r vision.Result) string {
	return fmt.Sprintf("%s (%.2f)", r.Label, r.Probability)
}

// Run loads the model, opens the source and classifies frames until ctx is
// cancelled. Cancellation is a normal exit and returns nil. Any other failure
// is written to the sink as a final "Error: ..." line and returned.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Loader == nil || cfg.Opener == nil || cfg.Sink == nil {
		return errors.New("loop: loader, opener and sink are required")
	}
	if cfg.Pacer == nil && !cfg.Once {
		return errors.New("loop: pacer is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("loop", nil)
	}

	r := &runner{cfg: cfg, log: log}
	err := r.run(ctx)
	if err == nil || ctx.Err() != nil {
		return nil
	}

	cfg.Sink.Emit(console.ErrorLine(err))
	log.Error("loop stopped: %v", err)
	return err
}

type runner struct {
	cfg    Config
	log    *logger.Logger
	frames int
}

func (r *runner) emit(events ...console.Event) {
	r.cfg.Sink.Emit(events...)
}

func (r *runner) run(ctx context.Context) error {
	r.emit(console.WriteLine{Line: LineHello})
	r.emit(console.WriteLine{Line: LoadingLine(r.cfg.ModelName)})

	start := time.Now()
	model, err := r.cfg.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			r.log.Warn("failed to close model: %v", cerr)
		}
	}()
	r.log.InfoWithFields("model loaded", []logger.Field{
		logger.F("model", r.cfg.ModelName),
		logger.Duration(time.Since(start)),
	})

	r.emit(console.WriteLine{Line: LineLoaded})

	source, err := r.cfg.Opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			r.log.Warn("failed to close source: %v", cerr)
		}
		r.log.InfoWithFields("loop finished", []logger.Field{
			logger.F("source", source.Name()),
			logger.Count(r.frames),
		})
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.step(ctx, model, source); err != nil {
			return err
		}
		if r.cfg.Once {
			return nil
		}

		if err := r.cfg.Pacer.Next(ctx); err != nil {
			return err
		}
	}
}

// step captures, classifies and reports one frame. The frame is disposed
// before step returns, whatever the outcome.
func (r *runner) step(ctx context.Context, model vision.Model, source capture.Source) error {
	var frame *capture.Frame
	err := r.track(monitor.OperationCapture, func() (err error) {
		frame, err = source.Capture(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	defer frame.Dispose()

	var results []vision.Result
	err = r.track(monitor.OperationClassify, func() (err error) {
		results, err = model.Classify(ctx, frame)
		return err
	})
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}
	r.frames++
	if r.cfg.Monitor != nil {
		r.cfg.Monitor.FrameDone()
	}

	for _, o := range r.cfg.Observers {
		o.ObserveResults(frame, results)
	}

	if len(results) == 0 {
		r.log.Debug("frame %d produced no results", frame.Seq)
		return nil
	}

	r.log.DebugWithFields("frame classified", []logger.Field{
		logger.F("seq", frame.Seq),
		logger.F("trace_id", frame.TraceID),
		logger.F("label", results[0].Label),
		logger.F("probability", results[0].Probability),
	})

	if r.cfg.Once {
		return r.emitJSON(results)
	}

	r.emit(
		console.WriteLine{Line: FormatResult(results[0])},
		console.SetGuess{Label: results[0].Label},
	)
	return nil
}

func (r *runner) track(op monitor.Operation, fn func() error) error {
	if r.cfg.Monitor == nil {
		return fn()
	}
	return r.cfg.Monitor.Track(op, fn)
}

func (r *runner) emitJSON(results []vision.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	events := make([]console.Event, 0, len(lines)+1)
	for _, line := range lines {
		events = append(events, console.WriteLine{Line: line})
	}
	events = append(events, console.SetGuess{Label: results[0].Label})
	r.emit(events...)
	return nil
}
