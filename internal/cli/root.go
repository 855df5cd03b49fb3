package cli

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/yildizm/glimpse/internal/config"
	"github.com/yildizm/glimpse/internal/emoji"
	"github.com/yildizm/glimpse/internal/ui"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	noEmoji   bool
	outputFmt string

	configOnce   sync.Once
	globalConfig *config.Config
	configErr    error
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "glimpse",
		Short: "Live image classification in the terminal",
		Long: `glimpse classifies a webcam stream or a still image with a pretrained
ImageNet model and shows the latest guess next to a rolling log of results.

Classifications can be recorded to a transcript, summarized later with
"glimpse history", and published to an MQTT broker.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Auto-disable emojis on Windows if not explicitly set
			if runtime.GOOS == "windows" && !cmd.Flag("no-emoji").Changed {
				noEmoji = true
			}
			emoji.SetEmojiDisabled(noEmoji)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noEmoji, "no-emoji", false, "disable emoji output (useful for Windows terminals)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "output format (text, json, markdown, csv)")

	// Add subcommands
	rootCmd.AddCommand(newCameraCommand())
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version number, build commit, date, and runtime information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			displayCommit := commit
			displayDate := date

			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			if commit == "none" || commit == "" {
				displayCommit = "local-build"
			}
			if date == "unknown" || date == "" {
				displayDate = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "glimpse %s (%s) built on %s\n", displayVersion, displayCommit, displayDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig loads the configuration once per process from --config or the
// default search paths.
func loadConfig() (*config.Config, error) {
	configOnce.Do(func() {
		globalConfig, configErr = config.NewLoader().LoadConfig(cfgFile)
		if configErr != nil {
			configErr = fmt.Errorf("failed to load configuration: %w", configErr)
		}
	})
	return globalConfig, configErr
}

// Global helpers
func isVerbose() bool {
	return verbose || (globalConfig != nil && globalConfig.Output.Verbose)
}

func getOutputFormat(cfg *config.Config) string {
	if outputFmt != "" {
		return outputFmt
	}
	if cfg != nil && cfg.Output.DefaultFormat != "" {
		return cfg.Output.DefaultFormat
	}
	return "text"
}

func isEmojiDisabled() bool {
	return emoji.IsEmojiDisabled()
}

// colorEnabled resolves --no-color, NO_COLOR and output.color_mode.
// In auto mode color is used only when stdout is a terminal.
func colorEnabled(cfg *config.Config) bool {
	if noColor || ui.IsColorDisabled() {
		return false
	}
	mode := "auto"
	if cfg != nil && cfg.Output.ColorMode != "" {
		mode = cfg.Output.ColorMode
	}
	switch mode {
	case "never":
		return false
	case "always":
		return true
	default:
		return isatty.IsTerminal(os.Stdout.Fd())
	}
}
