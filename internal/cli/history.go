package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yildizm/glimpse/internal/report"
	"github.com/yildizm/glimpse/internal/transcript"
)

var historyOutputFile string

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [transcript]",
		Short: "Summarize a recorded session",
		Long: `Summarize a session transcript written while console.transcript was set:
number of lines, results and errors, how often each label was guessed, and
the time the session covered.

If no transcript is given, console.transcript from the configuration is used.

Examples:
  glimpse history session.log
  glimpse history -o json session.log`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().StringVar(&historyOutputFile, "output-file", "", "save the summary to a file instead of stdout")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupConsoleLogging(cfg, cmd.ErrOrStderr())

	path := cfg.Console.Transcript
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no transcript given and console.transcript is not configured")
	}

	// #nosec G304 - path is provided by the user
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer func() { _ = file.Close() }()

	summary, err := transcript.Summarize(file)
	if err != nil {
		return err
	}

	f, err := report.New(getOutputFormat(cfg), colorEnabled(cfg), !isEmojiDisabled())
	if err != nil {
		return err
	}
	out, err := f.FormatHistory(filepath.Base(path), summary)
	if err != nil {
		return fmt.Errorf("failed to format summary: %w", err)
	}

	return writeOutput(cmd.OutOrStdout(), historyOutputFile, out)
}
