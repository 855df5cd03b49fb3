package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/config"
	"github.com/yildizm/glimpse/internal/logger"
)

var (
	cameraFacingMode string
	cameraDevice     string
	cameraFPS        float64
	cameraOnce       bool
)

func newCameraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Classify a live webcam stream",
		Long: `Open the webcam and classify frames continuously until you quit.

The camera is chosen by facing mode (user or environment), mapped to a V4L2
device in the configuration, or directly with --device. Press q to quit.

Examples:
  glimpse camera
  glimpse camera --facing-mode environment
  glimpse camera --device /dev/video2 --fps 10`,
		Args: cobra.NoArgs,
		RunE: runCamera,
	}

	cmd.Flags().StringVar(&cameraFacingMode, "facing-mode", "", "camera facing mode (user, environment)")
	cmd.Flags().StringVar(&cameraDevice, "device", "", "V4L2 device path, overrides --facing-mode")
	cmd.Flags().Float64Var(&cameraFPS, "fps", 0, "frames classified per second")
	cmd.Flags().BoolVar(&cameraOnce, "once", false, "classify a single frame and show all results")

	return cmd
}

func runCamera(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyCameraFlags(cmd, cfg); err != nil {
		return err
	}

	device := cfg.Capture.DevicePath(cameraDevice)
	opener := capture.NewWebcamOpener(capture.WebcamConfig{
		Device:       device,
		FacingMode:   cfg.Capture.FacingMode,
		Width:        cfg.Capture.Width,
		Height:       cfg.Capture.Height,
		StartTimeout: 10 * time.Second,
		Logger:       logger.NewWithCallback("webcam", isVerbose),
	})

	return runSession(cmd.Context(), cfg, session{
		Source: fmt.Sprintf("%s (%s)", device, cfg.Capture.FacingMode),
		Opener: opener,
		Once:   cameraOnce,
	})
}

// applyCameraFlags overrides configuration with explicitly set flags
func applyCameraFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flag("facing-mode").Changed {
		switch cameraFacingMode {
		case "user", "environment":
			cfg.Capture.FacingMode = cameraFacingMode
		default:
			return fmt.Errorf("invalid facing mode: %s (must be one of: user, environment)", cameraFacingMode)
		}
	}
	if cmd.Flag("fps").Changed {
		if cameraFPS <= 0 {
			return fmt.Errorf("fps must be greater than 0")
		}
		cfg.Capture.RefreshRate = cameraFPS
	}
	return nil
}
