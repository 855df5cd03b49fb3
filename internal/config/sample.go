package config

// SampleConfig returns a fully documented configuration file
func SampleConfig() string {
	return `# glimpse configuration
version: "1.0"

model:
  # Name shown in the console while the model loads
  name: mobilenet
  # ONNX classification model (NCHW float input, one logit per class)
  path: models/mobilenetv2-12.onnx
  # Class labels, one per line, in model output order
  labels: models/imagenet_classes.txt
  # onnxruntime shared library
  runtime_lib: models/libonnxruntime.so
  # Input edge for models whose input shape is dynamic
  input_size: 224
  # Results kept per frame
  top_k: 3
  # Intra-op inference threads (0 keeps the default)
  threads: 4

capture:
  # Which camera to open: user or environment
  facing_mode: user
  devices:
    user: /dev/video0
    environment: /dev/video1
  width: 640
  height: 480
  # Frames per second the capture loop is paced at
  refresh_rate: 60
  # Still image used by "glimpse classify" when no argument is given
  image: ""

console:
  # Lines kept in the scrollback pane
  lines: 20
  # Append every console line to this file (logfmt)
  transcript: ""

output:
  default_format: text  # text|json|markdown|csv
  color_mode: auto      # auto|always|never
  verbose: false
  theme: default        # default|high-contrast|minimal

publish:
  enabled: false
  broker: localhost:1883
  topic: glimpse/classifications
  client_id: glimpse
  qos: 0
  format: json          # json|msgpack

log:
  level: info           # debug|info|warn|error
  # Diagnostics go here while the TUI owns the terminal
  file: ""
`
}

// MinimalSampleConfig returns a configuration with only the essential settings
func MinimalSampleConfig() string {
	return `version: "1.0"
model:
  path: models/mobilenetv2-12.onnx
  labels: models/imagenet_classes.txt
  runtime_lib: models/libonnxruntime.so
capture:
  facing_mode: user
console:
  lines: 20
`
}
