package loop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/console"
	"github.com/yildizm/glimpse/internal/monitor"
	"github.com/yildizm/glimpse/internal/vision"
)

// recorder collects emitted batches and folds them into a console state.
type recorder struct {
	mu      sync.Mutex
	batches [][]console.Event
	state   console.State
}

func newRecorder(capacity int) *recorder {
	return &recorder{state: console.New(capacity)}
}

func (r *recorder) Emit(events ...console.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
	r.state = console.Apply(r.state, events...)
}

func (r *recorder) snapshot() console.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type fakeModel struct {
	results [][]vision.Result
	err     error
	calls   int
	closed  bool
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Classify(ctx context.Context, frame *capture.Frame) ([]vision.Result, error) {
	if frame.Disposed() {
		return nil, errors.New("classified a disposed frame")
	}
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) == 0 {
		return nil, nil
	}
	return m.results[(m.calls-1)%len(m.results)], nil
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

type fakeSource struct {
	frames []*capture.Frame
	err    error
	closed bool
}

func (s *fakeSource) Capture(ctx context.Context) (*capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	f := &capture.Frame{Seq: uint64(len(s.frames) + 1), Width: 1, Height: 1, Pix: make([]byte, 4)}
	s.frames = append(s.frames, f)
	return f, nil
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSource) allDisposed() bool {
	for _, f := range s.frames {
		if !f.Disposed() {
			return false
		}
	}
	return true
}

// countingPacer cancels the run after n ticks.
func countingPacer(n int, cancel context.CancelFunc) capture.Pacer {
	ticks := 0
	return capture.PacerFunc(func(ctx context.Context) error {
		ticks++
		if ticks >= n {
			cancel()
			return ctx.Err()
		}
		return nil
	})
}

func loaderFor(m vision.Model, err error) vision.Loader {
	return vision.LoaderFunc(func(ctx context.Context) (vision.Model, error) {
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

func openerFor(s capture.Source, err error) capture.Opener {
	return capture.OpenerFunc(func(ctx context.Context) (capture.Source, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

type observerFunc func(frame *capture.Frame, results []vision.Result)

func (f observerFunc) ObserveResults(frame *capture.Frame, results []vision.Result) {
	f(frame, results)
}

func TestRunClassifiesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &fakeModel{results: [][]vision.Result{
		{{Label: "goldfish", Probability: 0.9312}, {Label: "tench", Probability: 0.03}},
		{{Label: "tabby", Probability: 0.5}},
	}}
	source := &fakeSource{}
	rec := newRecorder(20)

	var observed []string
	err := Run(ctx, Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(model, nil),
		Opener:    openerFor(source, nil),
		Pacer:     countingPacer(3, cancel),
		Sink:      rec,
		Observers: []ResultObserver{observerFunc(func(frame *capture.Frame, results []vision.Result) {
			if frame.Disposed() {
				t.Error("Observer saw a disposed frame")
			}
			observed = append(observed, results[0].Label)
		})},
	})
	if err != nil {
		t.Fatalf("Expected nil error on cancellation, got %v", err)
	}

	state := rec.snapshot()
	want := []string{
		"Hello",
		"Loading mobilenet..",
		"Successfully loaded model",
		"goldfish (0.93)",
		"tabby (0.50)",
		"goldfish (0.93)",
	}
	if strings.Join(state.Lines, "|") != strings.Join(want, "|") {
		t.Errorf("Unexpected lines:\n got  %q\n want %q", state.Lines, want)
	}
	if state.Guess != "goldfish" {
		t.Errorf("Expected guess goldfish, got %q", state.Guess)
	}
	if len(observed) != 3 {
		t.Errorf("Expected 3 observed results, got %d", len(observed))
	}

	if !model.closed || !source.closed {
		t.Error("Expected model and source to be closed")
	}
	if len(source.frames) != 3 || !source.allDisposed() {
		t.Errorf("Expected 3 disposed frames, got %d (all disposed: %v)", len(source.frames), source.allDisposed())
	}

	// A result line and its guess arrive together
	last := rec.batches[len(rec.batches)-1]
	if len(last) != 2 {
		t.Fatalf("Expected line and guess in one batch, got %d events", len(last))
	}
	if _, ok := last[1].(console.SetGuess); !ok {
		t.Errorf("Expected SetGuess after WriteLine, got %T", last[1])
	}
}

func TestRunRollsConsole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newRecorder(20)
	err := Run(ctx, Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(&fakeModel{results: [][]vision.Result{{{Label: "cat", Probability: 1}}}}, nil),
		Opener:    openerFor(&fakeSource{}, nil),
		Pacer:     countingPacer(25, cancel),
		Sink:      rec,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	state := rec.snapshot()
	// 3 startup lines + 25 results = 28 lines written
	if state.Len() != 20 || state.Discarded != 8 {
		t.Errorf("Expected 20 lines and 8 discarded, got %d and %d", state.Len(), state.Discarded)
	}
	if state.Lines[0] != "cat (1.00)" {
		t.Errorf("Expected startup lines to be evicted, first line is %q", state.Lines[0])
	}
}

func TestRunSurfacesErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		loadErr    error
		openErr    error
		captureErr error
		classErr   error
		wantLines  int
		wantPrefix string
	}{
		{name: "load", loadErr: boom, wantLines: 3, wantPrefix: "Error: failed to load model: boom"},
		{name: "open", openErr: boom, wantLines: 4, wantPrefix: "Error: failed to open source: boom"},
		{name: "capture", captureErr: capture.ErrClosed, wantLines: 4, wantPrefix: "Error: capture failed: capture: source closed"},
		{name: "classify", classErr: boom, wantLines: 4, wantPrefix: "Error: classification failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{err: tt.classErr}
			source := &fakeSource{err: tt.captureErr}
			rec := newRecorder(20)

			err := Run(context.Background(), Config{
				ModelName: "mobilenet",
				Loader:    loaderFor(model, tt.loadErr),
				Opener:    openerFor(source, tt.openErr),
				Pacer:     capture.PacerFunc(func(context.Context) error { return nil }),
				Sink:      rec,
			})
			if err == nil {
				t.Fatal("Expected an error")
			}

			state := rec.snapshot()
			if state.Len() != tt.wantLines {
				t.Fatalf("Expected %d lines, got %q", tt.wantLines, state.Lines)
			}
			last := state.Lines[state.Len()-1]
			if last != tt.wantPrefix {
				t.Errorf("Expected final line %q, got %q", tt.wantPrefix, last)
			}
			if !console.IsError(last) {
				t.Errorf("Expected final line to be an error line")
			}
			if !source.allDisposed() {
				t.Error("Expected every frame to be disposed")
			}
			if tt.loadErr == nil && !model.closed {
				t.Error("Expected model to be closed")
			}
			if tt.captureErr != nil && !errors.Is(err, capture.ErrClosed) {
				t.Errorf("Expected wrapped ErrClosed, got %v", err)
			}
		})
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := newRecorder(20)
	source := &fakeSource{}
	err := Run(ctx, Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(&fakeModel{}, nil),
		Opener:    openerFor(source, nil),
		Pacer:     capture.PacerFunc(func(context.Context) error { return nil }),
		Sink:      rec,
	})
	if err != nil {
		t.Fatalf("Expected nil on cancellation, got %v", err)
	}
	for _, line := range rec.snapshot().Lines {
		if console.IsError(line) {
			t.Errorf("Did not expect an error line on cancellation, got %q", line)
		}
	}
	if len(source.frames) != 0 {
		t.Errorf("Expected no frames captured, got %d", len(source.frames))
	}
}

func TestRunOnce(t *testing.T) {
	rec := newRecorder(20)
	model := &fakeModel{results: [][]vision.Result{
		{{Label: "goldfish", Probability: 0.75}, {Label: "tench", Probability: 0.25}},
	}}
	source := &fakeSource{}

	err := Run(context.Background(), Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(model, nil),
		Opener:    openerFor(source, nil),
		Sink:      rec,
		Once:      true,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	state := rec.snapshot()
	if model.calls != 1 {
		t.Errorf("Expected a single classification, got %d", model.calls)
	}
	if state.Guess != "goldfish" {
		t.Errorf("Expected guess goldfish, got %q", state.Guess)
	}
	body := strings.Join(state.Lines[3:], "\n")
	if !strings.HasPrefix(body, "[") || !strings.Contains(body, `"label": "tench"`) {
		t.Errorf("Expected indented JSON results, got:\n%s", body)
	}
	if !source.closed || !source.allDisposed() {
		t.Error("Expected source closed and frame disposed")
	}
}

func TestRunEmptyResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newRecorder(20)
	err := Run(ctx, Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(&fakeModel{}, nil),
		Opener:    openerFor(&fakeSource{}, nil),
		Pacer:     countingPacer(2, cancel),
		Sink:      rec,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if state := rec.snapshot(); state.Len() != 3 || state.Guess != "" {
		t.Errorf("Expected only startup lines, got %q guess %q", state.Lines, state.Guess)
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	if err := Run(context.Background(), Config{}); err == nil {
		t.Error("Expected error for empty config")
	}
	err := Run(context.Background(), Config{
		Loader: loaderFor(&fakeModel{}, nil),
		Opener: openerFor(&fakeSource{}, nil),
		Sink:   newRecorder(1),
	})
	if err == nil {
		t.Error("Expected error without pacer")
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		in   vision.Result
		want string
	}{
		{vision.Result{Label: "goldfish", Probability: 0.93121}, "goldfish (0.93)"},
		{vision.Result{Label: "tabby, tabby cat", Probability: 1}, "tabby, tabby cat (1.00)"},
		{vision.Result{Label: "x", Probability: 0.005}, "x (0.01)"},
	}
	for _, tt := range tests {
		if got := FormatResult(tt.in); got != tt.want {
			t.Errorf("FormatResult(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTee(t *testing.T) {
	a, b := newRecorder(5), newRecorder(5)
	sink := Tee(a, nil, b)
	sink.Emit(console.WriteLine{Line: "one"}, console.SetGuess{Label: "g"})

	if a.snapshot().Len() != 1 || b.snapshot().Guess != "g" {
		t.Error("Expected both sinks to receive events")
	}
}

func TestRunRecordsTimings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New()
	err := Run(ctx, Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(&fakeModel{results: [][]vision.Result{{{Label: "goldfish", Probability: 0.9}}}}, nil),
		Opener:    openerFor(&fakeSource{}, nil),
		Pacer:     countingPacer(4, cancel),
		Sink:      newRecorder(20),
		Monitor:   mon,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap := mon.Snapshot()
	if snap.Frames != 4 {
		t.Errorf("Expected 4 frames, got %d", snap.Frames)
	}
	for _, op := range []monitor.Operation{monitor.OperationCapture, monitor.OperationClassify} {
		m, ok := snap.Operation(op)
		if !ok || m.Count != 4 || m.Errors != 0 {
			t.Errorf("Unexpected %s metrics %+v (found %v)", op, m, ok)
		}
	}
}

func TestRunRecordsFailedClassification(t *testing.T) {
	mon := monitor.New()
	err := Run(context.Background(), Config{
		ModelName: "mobilenet",
		Loader:    loaderFor(&fakeModel{err: errors.New("bad tensor")}, nil),
		Opener:    openerFor(&fakeSource{}, nil),
		Pacer:     capture.PacerFunc(func(ctx context.Context) error { return nil }),
		Sink:      newRecorder(20),
		Monitor:   mon,
	})
	if err == nil {
		t.Fatal("Expected classification error")
	}

	snap := mon.Snapshot()
	m, ok := snap.Operation(monitor.OperationClassify)
	if !ok || m.Count != 1 || m.Errors != 1 {
		t.Errorf("Unexpected classify metrics %+v", m)
	}
	if snap.Frames != 0 {
		t.Errorf("Expected no completed frames, got %d", snap.Frames)
	}
}
