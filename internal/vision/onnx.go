package vision

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/logger"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXConfig configures an ONNX image classifier
type ONNXConfig struct {
	// Name is shown in the console while loading
	Name string
	// ModelPath is the .onnx file
	ModelPath string
	// LabelsPath lists one class per line
	LabelsPath string
	// RuntimeLib is the onnxruntime shared library
	RuntimeLib string
	// InputSize is the input edge in pixels for models with a dynamic
	// spatial shape; fixed model dimensions take precedence
	InputSize int
	// TopK bounds the number of results per frame
	TopK int
	// Threads is the intra-op thread count
	Threads int
	// Logger (optional)
	Logger *logger.Logger
}

// NewONNXLoader returns a Loader for an ONNX classifier.
func NewONNXLoader(cfg ONNXConfig) Loader {
	return LoaderFunc(func(ctx context.Context) (Model, error) {
		return LoadONNX(ctx, cfg)
	})
}

// LoadONNX loads labels and model. Session creation cannot be interrupted, so
// a cancelled ctx returns immediately and the session is closed once it is
// ready.
func LoadONNX(ctx context.Context, cfg ONNXConfig) (*ONNXModel, error) {
	type loaded struct {
		model *ONNXModel
		err   error
	}

	done := make(chan loaded, 1)
	go func() {
		m, err := loadONNX(cfg)
		done <- loaded{model: m, err: err}
	}()

	select {
	case res := <-done:
		return res.model, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.model != nil {
				_ = res.model.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func loadONNX(cfg ONNXConfig) (*ONNXModel, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 224
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("vision", nil)
	}

	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	if err := initORT(cfg.RuntimeLib); err != nil {
		return nil, fmt.Errorf("vision: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("vision: expected a single image input, got %d", len(inputs))
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("vision: model has no outputs")
	}
	if dims := inputs[0].Dimensions; len(dims) != 4 {
		return nil, fmt.Errorf("vision: expected 4D NCHW input tensor, got %v", dims)
	}

	classes := outputs[0].Dimensions[len(outputs[0].Dimensions)-1]
	if classes <= 0 {
		return nil, fmt.Errorf("vision: cannot determine class count from output %v", outputs[0].Dimensions)
	}
	if int(classes) != len(labels) {
		log.Warn("model has %d classes but %d labels were loaded", classes, len(labels))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	_ = opts.SetIntraOpNumThreads(cfg.Threads)
	_ = opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create session: %w", err)
	}

	width, height := inputSize(inputs[0].Dimensions, cfg.InputSize)
	if width != cfg.InputSize || height != cfg.InputSize {
		log.Debug("model input is %dx%d, configured size %d not used", width, height, cfg.InputSize)
	}

	log.DebugWithFields("model loaded", []logger.Field{
		logger.F("model", cfg.ModelPath),
		logger.F("input", inputs[0].Name),
		logger.F("input_size", fmt.Sprintf("%dx%d", width, height)),
		logger.F("output", outputs[0].Name),
		logger.F("classes", classes),
	})

	return &ONNXModel{
		name:    cfg.Name,
		width:   width,
		height:  height,
		topK:    cfg.TopK,
		labels:  labels,
		classes: classes,
		session: session,
	}, nil
}

// ONNXModel classifies frames with an ONNX Runtime session.
type ONNXModel struct {
	name    string
	width   int
	height  int
	topK    int
	labels  []string
	classes int64

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// Name returns the configured model name.
func (m *ONNXModel) Name() string {
	return m.name
}

// Classify runs one inference on the frame.
func (m *ONNXModel) Classify(ctx context.Context, frame *capture.Frame) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Disposed() {
		return nil, fmt.Errorf("vision: frame is not available")
	}

	scores, err := m.infer(preprocess(frame.Image(), m.width, m.height))
	if err != nil {
		return nil, err
	}
	return topK(softmax(scores), m.labels, m.topK), nil
}

func (m *ONNXModel) infer(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, fmt.Errorf("vision: model is closed")
	}

	tIn, err := ort.NewTensor(ort.NewShape(1, 3, int64(m.height), int64(m.width)), input)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.classes))
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := m.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("vision: inference failed: %w", err)
	}

	// Copy data out before the tensor is destroyed.
	src := tOut.GetData()
	scores := make([]float32, len(src))
	copy(scores, src)
	return scores, nil
}

// Close releases the session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
