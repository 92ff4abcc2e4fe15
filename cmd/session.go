package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/agent"
	"github.com/xkilldash9x/deskpilot/internal/audit"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/hotkey"
	"github.com/xkilldash9x/deskpilot/internal/input"
	"github.com/xkilldash9x/deskpilot/internal/llmclient"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

// Collaborator constructors and platform backends, swapped out in tests.
var (
	newLLMClient = llmclient.NewClient
	newRecorder  = audit.New
	newGrabber   = defaultGrabber
	newSink      = defaultSink
	newKeyState  = hotkey.NewSystemKeyState
)

// session owns everything a goal or a question needs: the pilot and the
// resources behind it.
type session struct {
	cfg      *config.Config
	pilot    *agent.Pilot
	client   schemas.LLMClient
	recorder audit.Recorder
	logger   *zap.Logger
}

// newSession wires the capture, input, collaborator, audit and hotkey layers
// into a Pilot. Step lines are written to out as they happen.
func newSession(ctx context.Context, cfg *config.Config, framePath string, out io.Writer) (*session, error) {
	logger := observability.GetLogger()

	grabber, err := newGrabber(cfg.Capture(), framePath, logger)
	if err != nil {
		return nil, err
	}
	sink, err := newSink(cfg.Input(), logger)
	if err != nil {
		return nil, err
	}

	client, err := newLLMClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create collaborator client: %w", err)
	}
	recorder, err := newRecorder(ctx, cfg.Audit(), logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	pilotCfg := cfg.Pilot()
	capturer := capture.NewCapturer(grabber, capture.NewSystemFocusProvider(), cfg.Capture(), logger)
	synth := input.NewSynthesizer(sink, logger,
		input.WithDoubleClickDwell(pilotCfg.DoubleClickDwell),
		input.WithGlider(input.NewGlider(cfg.Input().Glide)),
	)
	mind := agent.NewLLMMind(client, agent.PromptRules{
		GridStep:       cfg.Capture().Grid.Step,
		AimExpireDelta: pilotCfg.AimExpireDelta,
		FocusCropSize:  pilotCfg.FocusCropSize,
	}, logger)

	opts := []agent.Option{
		agent.WithRecorder(recorder),
		agent.WithCursor(sink),
		agent.WithStepObserver(func(line string) { fmt.Fprintln(out, stepStyle.Render(line)) }),
	}
	if w := newStopWatcher(cfg.Hotkey(), logger); w != nil {
		opts = append(opts, agent.WithWatcher(w))
	}
	if rl := runLogFiles(cfg, logger); rl != nil {
		opts = append(opts, agent.WithRunLogger(rl))
	}

	return &session{
		cfg:      cfg,
		pilot:    agent.NewPilot(capturer, mind, synth, pilotCfg, logger, opts...),
		client:   client,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Close releases the collaborator client and the audit store.
func (s *session) Close() error {
	return errors.Join(s.client.Close(), s.recorder.Close())
}

// applyLive pushes the settings that can change between goals onto the pilot.
func (s *session) applyLive(cfg *config.Config) {
	s.cfg = cfg
	s.pilot.SetMouseEnabled(cfg.Pilot().MouseEnabled)
	s.pilot.SetSettleDelay(cfg.Pilot().SettleDelay)
}

func defaultGrabber(cfg config.CaptureConfig, framePath string, logger *zap.Logger) (capture.Grabber, error) {
	if framePath != "" {
		g, err := capture.LoadStaticGrabber(framePath)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	g, err := capture.NewScreenGrabber(cfg.DPIAware, logger)
	if err != nil {
		if errors.Is(err, capture.ErrUnsupportedPlatform) {
			return nil, fmt.Errorf("%w: pass --frame to drive a still image", err)
		}
		return nil, err
	}
	return g, nil
}

func defaultSink(cfg config.InputConfig, logger *zap.Logger) (input.Sink, error) {
	if cfg.DryRun {
		return input.NewDryRunSink(logger), nil
	}
	s, err := input.NewSystemSink()
	if err != nil {
		if errors.Is(err, input.ErrUnsupportedPlatform) {
			return nil, fmt.Errorf("%w: pass --dry-run to log input instead", err)
		}
		return nil, err
	}
	return s, nil
}

// newStopWatcher returns nil when the stop chord is disabled or cannot be read.
func newStopWatcher(cfg config.HotkeyConfig, logger *zap.Logger) *hotkey.Watcher {
	if !cfg.Enabled {
		return nil
	}
	keys, err := newKeyState()
	if err != nil {
		logger.Warn("Emergency stop hotkey unavailable.", zap.Error(err))
		return nil
	}
	return hotkey.NewWatcher(keys, cfg, logger)
}

// runLogFiles gives every run a rotated JSON log next to its other artifacts.
// Only the file and sqlite backends keep a directory per run.
func runLogFiles(cfg *config.Config, logger *zap.Logger) agent.RunLogger {
	ac := cfg.Audit()
	if ac.Backend != config.AuditFile && ac.Backend != config.AuditSQLite {
		return nil
	}
	root, err := homedir.Expand(ac.Dir)
	if err != nil {
		logger.Warn("Run log files disabled.", zap.Error(err))
		return nil
	}
	lc := cfg.Logger()
	return func(base *zap.Logger, runID string) (*zap.Logger, func()) {
		w := &lumberjack.Logger{
			Filename:   filepath.Join(root, "runs", runID, "run.log"),
			MaxSize:    lc.MaxSize,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAge,
			Compress:   lc.Compress,
		}
		ws := zapcore.AddSync(w)
		return observability.WithRunFile(base, ws, runID), func() {
			_ = ws.Sync()
			_ = w.Close()
		}
	}
}
