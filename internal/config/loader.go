package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order
var ConfigPaths = []string{
	"./.glimpse.yaml",               // Project-specific config (highest priority)
	"~/.config/glimpse/config.yaml", // User config
	"/etc/glimpse/config.yaml",      // System config (lowest priority)
}

// Loader handles configuration loading with priority merging
type Loader struct {
	configPaths []string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{
		configPaths: ConfigPaths,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Command line flags (handled by caller)
// 2. Environment variables
// 3. ./.glimpse.yaml
// 4. ~/.config/glimpse/config.yaml
// 5. /etc/glimpse/config.yaml
// 6. Built-in defaults
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// If custom path is provided, use only that path
	if customPath != "" {
		// Validate the custom path for security
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(config, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		// Load from standard paths in reverse priority order (lowest to highest)
		paths := make([]string, len(l.configPaths))
		copy(paths, l.configPaths)
		// Reverse the slice to load lowest priority first
		for i := len(paths)/2 - 1; i >= 0; i-- {
			opp := len(paths) - 1 - i
			paths[i], paths[opp] = paths[opp], paths[i]
		}

		for _, path := range paths {
			expandedPath := expandPath(path)
			if fileExists(expandedPath) {
				if err := l.loadFromFile(config, expandedPath); err != nil {
					// Log warning but continue with other config files
					fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", expandedPath, err)
				}
			}
		}
	}

	// Apply environment variable overrides
	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file and merges it with existing config
func (l *Loader) loadFromFile(config *Config, path string) error {
	// #nosec G304 - path is validated by validateConfigPath() before reaching here
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// Create a temporary config to unmarshal into
	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Merge the file config into the existing config
	mergeConfigs(config, &fileConfig)

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (l *Loader) applyEnvOverrides(config *Config) error {
	envMappings := map[string]func(string) error{
		// Model Config
		"GLIMPSE_MODEL_NAME":        func(v string) error { config.Model.Name = v; return nil },
		"GLIMPSE_MODEL_PATH":        func(v string) error { config.Model.Path = v; return nil },
		"GLIMPSE_MODEL_LABELS":      func(v string) error { config.Model.Labels = v; return nil },
		"GLIMPSE_MODEL_RUNTIME_LIB": func(v string) error { config.Model.RuntimeLib = v; return nil },
		"GLIMPSE_MODEL_INPUT_SIZE":  func(v string) error { return parseInt(v, &config.Model.InputSize) },
		"GLIMPSE_MODEL_TOP_K":       func(v string) error { return parseInt(v, &config.Model.TopK) },
		"GLIMPSE_MODEL_THREADS":     func(v string) error { return parseInt(v, &config.Model.Threads) },

		// Capture Config
		"GLIMPSE_CAPTURE_FACING_MODE":  func(v string) error { config.Capture.FacingMode = v; return nil },
		"GLIMPSE_CAPTURE_WIDTH":        func(v string) error { return parseInt(v, &config.Capture.Width) },
		"GLIMPSE_CAPTURE_HEIGHT":       func(v string) error { return parseInt(v, &config.Capture.Height) },
		"GLIMPSE_CAPTURE_REFRESH_RATE": func(v string) error { return parseFloat(v, &config.Capture.RefreshRate) },
		"GLIMPSE_CAPTURE_IMAGE":        func(v string) error { config.Capture.Image = v; return nil },

		// Console Config
		"GLIMPSE_CONSOLE_LINES":      func(v string) error { return parseInt(v, &config.Console.Lines) },
		"GLIMPSE_CONSOLE_TRANSCRIPT": func(v string) error { config.Console.Transcript = v; return nil },

		// Output Config
		"GLIMPSE_OUTPUT_DEFAULT_FORMAT": func(v string) error { config.Output.DefaultFormat = v; return nil },
		"GLIMPSE_OUTPUT_COLOR_MODE":     func(v string) error { config.Output.ColorMode = v; return nil },
		"GLIMPSE_OUTPUT_VERBOSE":        func(v string) error { return parseBool(v, &config.Output.Verbose) },
		"GLIMPSE_OUTPUT_THEME":          func(v string) error { config.Output.Theme = v; return nil },

		// Publish Config
		"GLIMPSE_PUBLISH_ENABLED":   func(v string) error { return parseBool(v, &config.Publish.Enabled) },
		"GLIMPSE_PUBLISH_BROKER":    func(v string) error { config.Publish.Broker = v; return nil },
		"GLIMPSE_PUBLISH_TOPIC":     func(v string) error { config.Publish.Topic = v; return nil },
		"GLIMPSE_PUBLISH_CLIENT_ID": func(v string) error { config.Publish.ClientID = v; return nil },
		"GLIMPSE_PUBLISH_QOS":       func(v string) error { return parseInt(v, &config.Publish.QoS) },
		"GLIMPSE_PUBLISH_FORMAT":    func(v string) error { config.Publish.Format = v; return nil },

		// Log Config
		"GLIMPSE_LOG_LEVEL": func(v string) error { config.Log.Level = v; return nil },
		"GLIMPSE_LOG_FILE":  func(v string) error { config.Log.File = v; return nil },
	}

	for envVar, setter := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	// Device mapping as a comma-separated list of mode=path pairs
	if devices := os.Getenv("GLIMPSE_CAPTURE_DEVICES"); devices != "" {
		parsed, err := parseDevices(devices)
		if err != nil {
			return fmt.Errorf("invalid value for GLIMPSE_CAPTURE_DEVICES: %w", err)
		}
		config.Capture.Devices = parsed
	}

	return nil
}

// GetConfigPaths returns the list of configuration file paths that will be searched
func GetConfigPaths() []string {
	paths := make([]string, 0, len(ConfigPaths))
	for _, path := range ConfigPaths {
		paths = append(paths, expandPath(path))
	}
	return paths
}

// FindConfigFile finds the first existing config file in the search paths
func FindConfigFile() (string, bool) {
	for _, path := range ConfigPaths {
		expandedPath := expandPath(path)
		if fileExists(expandedPath) {
			return expandedPath, true
		}
	}
	return "", false
}

// Helper functions

// validateConfigPath validates that a config path is safe to read
func validateConfigPath(path string) error {
	// Clean the path to resolve any ".." components
	cleanPath := filepath.Clean(path)

	// Check for path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	// Ensure it's a YAML file
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}

	// Convert to absolute path for additional validation
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Basic sanity check - ensure it's not in sensitive system directories
	if strings.HasPrefix(absPath, "/etc/passwd") ||
		strings.HasPrefix(absPath, "/etc/shadow") ||
		strings.HasPrefix(absPath, "/proc/") ||
		strings.HasPrefix(absPath, "/sys/") {
		return fmt.Errorf("access to system files not allowed")
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mergeConfigs merges source config into destination config
// Only non-zero values from source overwrite destination
func mergeConfigs(dst, src *Config) {
	// Version
	if src.Version != "" {
		dst.Version = src.Version
	}

	mergeModelConfig(&dst.Model, &src.Model)
	mergeCaptureConfig(&dst.Capture, &src.Capture)
	mergeConsoleConfig(&dst.Console, &src.Console)
	mergeOutputConfig(&dst.Output, &src.Output)
	mergePublishConfig(&dst.Publish, &src.Publish)
	mergeLogConfig(&dst.Log, &src.Log)
}

// mergeModelConfig merges model configuration
func mergeModelConfig(dst, src *ModelConfig) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.Labels != "" {
		dst.Labels = src.Labels
	}
	if src.RuntimeLib != "" {
		dst.RuntimeLib = src.RuntimeLib
	}
	if src.InputSize != 0 {
		dst.InputSize = src.InputSize
	}
	if src.TopK != 0 {
		dst.TopK = src.TopK
	}
	if src.Threads != 0 {
		dst.Threads = src.Threads
	}
}

// mergeCaptureConfig merges capture configuration
func mergeCaptureConfig(dst, src *CaptureConfig) {
	if src.FacingMode != "" {
		dst.FacingMode = src.FacingMode
	}
	if len(src.Devices) > 0 {
		if dst.Devices == nil {
			dst.Devices = make(map[string]string)
		}
		for k, v := range src.Devices {
			dst.Devices[k] = v
		}
	}
	if src.Width != 0 {
		dst.Width = src.Width
	}
	if src.Height != 0 {
		dst.Height = src.Height
	}
	if src.RefreshRate != 0 {
		dst.RefreshRate = src.RefreshRate
	}
	if src.Image != "" {
		dst.Image = src.Image
	}
}

// mergeConsoleConfig merges console configuration
func mergeConsoleConfig(dst, src *ConsoleConfig) {
	if src.Lines != 0 {
		dst.Lines = src.Lines
	}
	if src.Transcript != "" {
		dst.Transcript = src.Transcript
	}
}

// mergeOutputConfig merges output configuration
func mergeOutputConfig(dst, src *OutputConfig) {
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
	if src.ColorMode != "" {
		dst.ColorMode = src.ColorMode
	}
	if src.Theme != "" {
		dst.Theme = src.Theme
	}
	// For boolean fields, we need to check if they were explicitly set
	// This is a limitation of YAML unmarshaling, but we'll handle it in env overrides
	mergeIfSet(&dst.Verbose, src.Verbose)
}

// mergePublishConfig merges publish configuration
func mergePublishConfig(dst, src *PublishConfig) {
	if src.Broker != "" {
		dst.Broker = src.Broker
	}
	if src.Topic != "" {
		dst.Topic = src.Topic
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.QoS != 0 {
		dst.QoS = src.QoS
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	mergeIfSet(&dst.Enabled, src.Enabled)
}

// mergeLogConfig merges logging configuration
func mergeLogConfig(dst, src *LogConfig) {
	if src.Level != "" {
		dst.Level = src.Level
	}
	if src.File != "" {
		dst.File = src.File
	}
}

// mergeIfSet only merges boolean values if they appear to be explicitly set
// This is a simple heuristic, but works for most cases
func mergeIfSet(dst *bool, src bool) {
	// For now, always merge - this could be improved with custom unmarshaling
	*dst = src
}

// Type conversion helpers

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

// parseDevices parses "user=/dev/video0,environment=/dev/video2"
func parseDevices(s string) (map[string]string, error) {
	devices := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		mode, path, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(mode) == "" || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("expected mode=path, got %q", pair)
		}
		devices[strings.TrimSpace(mode)] = strings.TrimSpace(path)
	}
	return devices, nil
}
