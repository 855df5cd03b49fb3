package config

import (
	"fmt"
)

// Config holds the complete application configuration
type Config struct {
	Version string        `yaml:"version" json:"version"`
	Model   ModelConfig   `yaml:"model" json:"model"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`
	Console ConsoleConfig `yaml:"console" json:"console"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Publish PublishConfig `yaml:"publish" json:"publish"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// ModelConfig configures the classification model
type ModelConfig struct {
	Name       string `yaml:"name" json:"name"`               // display name used in the console
	Path       string `yaml:"path" json:"path"`               // ONNX model file
	Labels     string `yaml:"labels" json:"labels"`           // one class label per line
	RuntimeLib string `yaml:"runtime_lib" json:"runtime_lib"` // onnxruntime shared library
	InputSize  int    `yaml:"input_size" json:"input_size"`   // square input edge in pixels
	TopK       int    `yaml:"top_k" json:"top_k"`             // results kept per frame
	Threads    int    `yaml:"threads" json:"threads"`         // intra-op threads
}

// CaptureConfig configures the frame source
type CaptureConfig struct {
	FacingMode  string            `yaml:"facing_mode" json:"facing_mode"`   // user|environment
	Devices     map[string]string `yaml:"devices" json:"devices"`           // facing mode -> device path
	Width       int               `yaml:"width" json:"width"`               // webcam frame width
	Height      int               `yaml:"height" json:"height"`             // webcam frame height
	RefreshRate float64           `yaml:"refresh_rate" json:"refresh_rate"` // frames per second the loop is paced at
	Image       string            `yaml:"image" json:"image"`               // default still image
}

// ConsoleConfig configures the scrollback pane
type ConsoleConfig struct {
	Lines      int    `yaml:"lines" json:"lines"`           // lines retained in the pane
	Transcript string `yaml:"transcript" json:"transcript"` // optional session transcript file
}

// OutputConfig configures output formatting and display
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"` // text|json|markdown|csv
	ColorMode     string `yaml:"color_mode" json:"color_mode"`         // auto|always|never
	Verbose       bool   `yaml:"verbose" json:"verbose"`               // default verbosity
	Theme         string `yaml:"theme" json:"theme"`                   // default|high-contrast|minimal
}

// PublishConfig configures MQTT publishing of classifications
type PublishConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"` // host:port
	Topic    string `yaml:"topic" json:"topic"`
	ClientID string `yaml:"client_id" json:"client_id"`
	QoS      int    `yaml:"qos" json:"qos"`       // 0, 1 or 2
	Format   string `yaml:"format" json:"format"` // json|msgpack
}

// LogConfig configures diagnostic logging
type LogConfig struct {
	Level string `yaml:"level" json:"level"` // debug|info|warn|error
	File  string `yaml:"file" json:"file"`   // diagnostics file, empty for stderr
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Model: ModelConfig{
			Name:       "mobilenet",
			Path:       "models/mobilenetv2-12.onnx",
			Labels:     "models/imagenet_classes.txt",
			RuntimeLib: "models/libonnxruntime.so",
			InputSize:  224,
			TopK:       3,
			Threads:    4,
		},
		Capture: CaptureConfig{
			FacingMode: "user",
			Devices: map[string]string{
				"user":        "/dev/video0",
				"environment": "/dev/video1",
			},
			Width:       640,
			Height:      480,
			RefreshRate: 60,
			Image:       "",
		},
		Console: ConsoleConfig{
			Lines:      20,
			Transcript: "",
		},
		Output: OutputConfig{
			DefaultFormat: "text",
			ColorMode:     "auto",
			Verbose:       false,
			Theme:         "default",
		},
		Publish: PublishConfig{
			Enabled:  false,
			Broker:   "localhost:1883",
			Topic:    "glimpse/classifications",
			ClientID: "glimpse",
			QoS:      0,
			Format:   "json",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateModelConfig(); err != nil {
		return err
	}
	if err := c.validateCaptureConfig(); err != nil {
		return err
	}
	if err := c.validateConsoleConfig(); err != nil {
		return err
	}
	if err := c.validateOutputConfig(); err != nil {
		return err
	}
	if err := c.validatePublishConfig(); err != nil {
		return err
	}
	return c.validateLogConfig()
}

// validateModelConfig validates model-related configuration
func (c *Config) validateModelConfig() error {
	if c.Model.InputSize < 1 {
		return fmt.Errorf("input_size must be greater than 0")
	}
	if c.Model.TopK < 1 {
		return fmt.Errorf("top_k must be greater than 0")
	}
	if c.Model.Threads < 0 {
		return fmt.Errorf("threads must be non-negative")
	}
	return nil
}

// validateCaptureConfig validates capture-related configuration
func (c *Config) validateCaptureConfig() error {
	if c.Capture.FacingMode != "" {
		validModes := map[string]bool{
			"user":        true,
			"environment": true,
		}
		if !validModes[c.Capture.FacingMode] {
			return fmt.Errorf("invalid facing mode: %s (must be one of: user, environment)", c.Capture.FacingMode)
		}
	}
	if c.Capture.RefreshRate <= 0 {
		return fmt.Errorf("refresh_rate must be greater than 0")
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("capture width and height must be non-negative")
	}
	return nil
}

// validateConsoleConfig validates console-related configuration
func (c *Config) validateConsoleConfig() error {
	if c.Console.Lines < 1 {
		return fmt.Errorf("console lines must be greater than 0")
	}
	return nil
}

// validateOutputConfig validates output-related configuration
func (c *Config) validateOutputConfig() error {
	if c.Output.DefaultFormat != "" {
		validFormats := map[string]bool{
			"json":     true,
			"text":     true,
			"markdown": true,
			"csv":      true,
		}
		if !validFormats[c.Output.DefaultFormat] {
			return fmt.Errorf("invalid output format: %s (must be one of: json, text, markdown, csv)", c.Output.DefaultFormat)
		}
	}
	if c.Output.ColorMode != "" {
		validColorModes := map[string]bool{
			"auto":   true,
			"always": true,
			"never":  true,
		}
		if !validColorModes[c.Output.ColorMode] {
			return fmt.Errorf("invalid color mode: %s (must be one of: auto, always, never)", c.Output.ColorMode)
		}
	}
	if c.Output.Theme != "" {
		validThemes := map[string]bool{
			"default":       true,
			"high-contrast": true,
			"minimal":       true,
		}
		if !validThemes[c.Output.Theme] {
			return fmt.Errorf("invalid theme: %s (must be one of: default, high-contrast, minimal)", c.Output.Theme)
		}
	}
	return nil
}

// validatePublishConfig validates publish-related configuration
func (c *Config) validatePublishConfig() error {
	if c.Publish.QoS < 0 || c.Publish.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	if c.Publish.Format != "" && c.Publish.Format != "json" && c.Publish.Format != "msgpack" {
		return fmt.Errorf("invalid publish format: %s (must be one of: json, msgpack)", c.Publish.Format)
	}
	if c.Publish.Enabled {
		if c.Publish.Broker == "" {
			return fmt.Errorf("publish broker is required when publishing is enabled")
		}
		if c.Publish.Topic == "" {
			return fmt.Errorf("publish topic is required when publishing is enabled")
		}
	}
	return nil
}

// validateLogConfig validates logging configuration
func (c *Config) validateLogConfig() error {
	if c.Log.Level != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[c.Log.Level] {
			return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Log.Level)
		}
	}
	return nil
}

// DevicePath returns the capture device for the configured facing mode.
// An explicit override wins over the facing-mode mapping.
func (c *CaptureConfig) DevicePath(override string) string {
	if override != "" {
		return override
	}
	mode := c.FacingMode
	if mode == "" {
		mode = "user"
	}
	if dev, ok := c.Devices[mode]; ok && dev != "" {
		return dev
	}
	return "/dev/video0"
}
