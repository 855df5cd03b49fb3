package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/config"
	"github.com/yildizm/glimpse/internal/logger"
	"github.com/yildizm/glimpse/internal/loop"
	"github.com/yildizm/glimpse/internal/monitor"
	"github.com/yildizm/glimpse/internal/publish"
	"github.com/yildizm/glimpse/internal/transcript"
	"github.com/yildizm/glimpse/internal/ui"
	"github.com/yildizm/glimpse/internal/vision"
	"golang.org/x/sync/errgroup"
)

// session describes one TUI run over a frame source
type session struct {
	// Source is the name shown in the source panel
	Source string
	Opener capture.Opener
	Once   bool
}

// runSession runs the capture loop and the TUI side by side. Quitting the TUI
// or receiving SIGINT/SIGTERM cancels the loop. A loop failure stays on screen
// until the user quits and is then returned.
func runSession(ctx context.Context, cfg *config.Config, s session) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeLog, err := setupSessionLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.NewWithCallback("session", isVerbose)

	mon := monitor.New()
	defer func() {
		snap := mon.Snapshot()
		log.InfoWithFields("session finished", []logger.Field{
			logger.F("frames", snap.Frames),
			logger.F("fps", snap.FPS),
			logger.Duration(snap.Uptime),
			logger.F("timings", snap.Summary()),
		})
	}()

	var observers []loop.ResultObserver
	if cfg.Publish.Enabled {
		pub, err := publish.Connect(ctx, publisherConfig(cfg, mon))
		if err != nil {
			return fmt.Errorf("failed to connect publisher: %w", err)
		}
		defer func() {
			_ = pub.Close()
			st := pub.Stats()
			log.InfoWithFields("publisher closed", []logger.Field{
				logger.F("published", st.Published),
				logger.F("dropped", st.Dropped),
				logger.F("errors", st.Errors),
			})
		}()
		observers = append(observers, pub)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	theme, ok := ui.ThemeByName(cfg.Output.Theme)
	if !ok {
		log.Warn("unknown theme %q, using default", cfg.Output.Theme)
	}
	model := ui.New(ui.Options{
		Capacity:  cfg.Console.Lines,
		ModelName: cfg.Model.Name,
		Source:    s.Source,
		Theme:     theme,
		Color:     colorEnabled(cfg),
		Monitor:   mon,
		Cancel:    cancel,
	})
	program := tea.NewProgram(model)
	tuiSink := ui.NewSink(program)

	sinks := []loop.Sink{tuiSink}
	if cfg.Console.Transcript != "" {
		tw, err := transcript.Create(cfg.Console.Transcript)
		if err != nil {
			return err
		}
		defer func() {
			if err := tw.Err(); err != nil {
				log.Warn("transcript incomplete: %v", err)
			}
			_ = tw.Close()
		}()
		sinks = append(sinks, tw)
	}

	pacer := capture.NewTickerPacer(cfg.Capture.RefreshRate)
	defer pacer.Stop()

	var loopErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loopErr = loop.Run(gctx, loop.Config{
			ModelName: cfg.Model.Name,
			Loader:    vision.NewONNXLoader(onnxConfig(cfg)),
			Opener:    s.Opener,
			Pacer:     pacer,
			Sink:      loop.Tee(sinks...),
			Observers: observers,
			Once:      s.Once,
			Monitor:   mon,
			Logger:    logger.NewWithCallback("loop", isVerbose),
		})
		tuiSink.Done(loopErr)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal UI failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		program.Quit()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return loopErr
}

// setupSessionLogging routes diagnostics away from the terminal the TUI owns.
func setupSessionLogging(cfg *config.Config) (func(), error) {
	if cfg.Log.File == "" {
		logger.Discard()
		return func() {}, nil
	}

	closer, err := logger.InitFile(cfg.Log.File, logger.ParseLevel(cfg.Log.Level))
	if err != nil {
		return nil, err
	}
	return func() {
		logger.Discard()
		_ = closer.Close()
	}, nil
}

// setupConsoleLogging sends diagnostics to w for commands without a TUI.
func setupConsoleLogging(cfg *config.Config, w io.Writer) {
	level := logger.ParseLevel(cfg.Log.Level)
	if isVerbose() {
		level = logger.ParseLevel("debug")
	}
	logger.Init(w, "text", level)
}

func onnxConfig(cfg *config.Config) vision.ONNXConfig {
	return vision.ONNXConfig{
		Name:       cfg.Model.Name,
		ModelPath:  cfg.Model.Path,
		LabelsPath: cfg.Model.Labels,
		RuntimeLib: cfg.Model.RuntimeLib,
		InputSize:  cfg.Model.InputSize,
		TopK:       cfg.Model.TopK,
		Threads:    cfg.Model.Threads,
		Logger:     logger.NewWithCallback("vision", isVerbose),
	}
}

func publisherConfig(cfg *config.Config, mon *monitor.Monitor) publish.Config {
	return publish.Config{
		Broker:   cfg.Publish.Broker,
		Topic:    cfg.Publish.Topic,
		ClientID: cfg.Publish.ClientID,
		QoS:      byte(cfg.Publish.QoS),
		Format:   cfg.Publish.Format,
		Monitor:  mon,
		Logger:   logger.NewWithCallback("publish", isVerbose),
	}
}
