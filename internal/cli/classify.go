package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/config"
	"github.com/yildizm/glimpse/internal/logger"
	"github.com/yildizm/glimpse/internal/report"
	"github.com/yildizm/glimpse/internal/vision"
)

var (
	classifyWatch      bool
	classifyPlain      bool
	classifyOnce       bool
	classifyOutputFile string
)

func newClassifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [image]",
		Short: "Classify a still image",
		Long: `Classify a still image. The image is classified repeatedly in the terminal UI,
like a camera that never moves; with --watch it is reloaded whenever the file
changes on disk.

With --plain the image is classified once and the result is printed in the
format selected by --output.

If no image is given, capture.image from the configuration is used.

Examples:
  glimpse classify cat.jpg
  glimpse classify --watch frame.png
  glimpse classify --plain -o json cat.jpg`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().BoolVarP(&classifyWatch, "watch", "w", false, "reload the image when the file changes")
	cmd.Flags().BoolVar(&classifyPlain, "plain", false, "classify once and print a report instead of starting the UI")
	cmd.Flags().BoolVar(&classifyOnce, "once", false, "classify once in the UI and show all results")
	cmd.Flags().StringVar(&classifyOutputFile, "output-file", "", "save the --plain report to a file instead of stdout")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := resolveImagePath(args, cfg)
	if err != nil {
		return err
	}

	if classifyPlain {
		setupConsoleLogging(cfg, cmd.ErrOrStderr())
		return runPlainClassify(cmd, cfg, path)
	}

	opener := capture.NewStillOpener(capture.StillConfig{
		Path:   path,
		Watch:  classifyWatch,
		Logger: logger.NewWithCallback("still", isVerbose),
	})

	return runSession(cmd.Context(), cfg, session{
		Source: filepath.Base(path),
		Opener: opener,
		Once:   classifyOnce,
	})
}

// resolveImagePath picks the image argument or the configured default
func resolveImagePath(args []string, cfg *config.Config) (string, error) {
	path := cfg.Capture.Image
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", fmt.Errorf("no image given and capture.image is not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("cannot read image: %w", err)
	}
	return path, nil
}

func runPlainClassify(cmd *cobra.Command, cfg *config.Config, path string) error {
	ctx := cmd.Context()

	model, err := vision.LoadONNX(ctx, onnxConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer func() { _ = model.Close() }()

	c, err := classifyStill(ctx, model, path)
	if err != nil {
		return err
	}

	f, err := report.New(getOutputFormat(cfg), colorEnabled(cfg), !isEmojiDisabled())
	if err != nil {
		return err
	}
	out, err := f.Format(c)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	return writeOutput(cmd.OutOrStdout(), classifyOutputFile, out)
}

// classifyStill classifies a single frame of the image at path
func classifyStill(ctx context.Context, model vision.Model, path string) (*report.Classification, error) {
	source, err := capture.OpenStill(capture.StillConfig{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = source.Close() }()

	frame, err := source.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	defer frame.Dispose()

	start := time.Now()
	results, err := model.Classify(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	return &report.Classification{
		Image:     filepath.Base(path),
		Model:     model.Name(),
		Width:     frame.Width,
		Height:    frame.Height,
		Results:   results,
		Elapsed:   time.Since(start),
		Timestamp: frame.Timestamp,
	}, nil
}

// writeOutput writes data to path, or to w when path is empty
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
