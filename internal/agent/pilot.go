// internal/agent/pilot.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/audit"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/delta"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
	"github.com/xkilldash9x/deskpilot/internal/guard"
	"github.com/xkilldash9x/deskpilot/internal/hotkey"
)

// uuidNewString is a package-level variable for mocking UUID generation in tests.
var uuidNewString = uuid.NewString

// Executor performs an approved action. *input.Synthesizer implements it.
type Executor interface {
	Execute(ctx context.Context, a schemas.Action, res grounding.Resolver) error
}

// RunLogger derives the logger of one run. The returned func releases whatever
// the logger writes to and is called when the run ends.
type RunLogger func(base *zap.Logger, runID string) (*zap.Logger, func())

// Pilot drives the capture, decide, guard, execute loop for a goal and answers
// screen questions. A Pilot runs one goal at a time.
type Pilot struct {
	shooter   Shooter
	collab    Collaborator
	exec      Executor
	verifier  *Verifier
	cursor    capture.CursorSource
	recorder  audit.Recorder
	watcher   *hotkey.Watcher
	cfg       config.PilotConfig
	sleep     func(ctx context.Context, d time.Duration) error
	observe   func(line string)
	runLogger RunLogger
	logger    *zap.Logger
}

// Option configures a Pilot.
type Option func(*Pilot)

// WithRecorder sends run artifacts to rec.
func WithRecorder(rec audit.Recorder) Option {
	return func(p *Pilot) { p.recorder = rec }
}

// WithWatcher arms the emergency-stop chord for every run.
func WithWatcher(w *hotkey.Watcher) Option {
	return func(p *Pilot) { p.watcher = w }
}

// WithCursor sets where CURSOR_POS is read from.
func WithCursor(src capture.CursorSource) Option {
	return func(p *Pilot) { p.cursor = src }
}

// WithStepObserver receives every history line as it is recorded.
func WithStepObserver(fn func(line string)) Option {
	return func(p *Pilot) { p.observe = fn }
}

// WithRunLogger sets the per-run logger factory.
func WithRunLogger(fn RunLogger) Option {
	return func(p *Pilot) { p.runLogger = fn }
}

// NewPilot wires a Pilot. Without options it records nothing, has no stop
// chord and reports the cursor at the origin.
func NewPilot(shooter Shooter, collab Collaborator, exec Executor, cfg config.PilotConfig, logger *zap.Logger, opts ...Option) *Pilot {
	p := &Pilot{
		shooter:  shooter,
		collab:   collab,
		exec:     exec,
		cursor:   originCursor{},
		recorder: audit.Nop{},
		cfg:      cfg,
		sleep:    sleepContext,
		observe:  func(string) {},
		logger:   logger.Named("pilot"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.verifier = NewVerifier(shooter, collab, cfg.SettleDelay, p.logger)
	p.verifier.sleep = p.sleep
	return p
}

// SetMouseEnabled toggles pointer actions for subsequent runs.
func (p *Pilot) SetMouseEnabled(enabled bool) { p.cfg.MouseEnabled = enabled }

// SetSettleDelay changes the minimum post-action delay and the verification settle time.
func (p *Pilot) SetSettleDelay(d time.Duration) {
	p.cfg.SettleDelay = d
	p.verifier.settle = d
}

// Config returns the loop settings in effect.
func (p *Pilot) Config() config.PilotConfig { return p.cfg }

type originCursor struct{}

func (originCursor) Cursor(context.Context) (schemas.Point, error) { return schemas.Point{}, nil }

// stepFlow tells the loop what to do after dispatching an action.
type stepFlow int

const (
	flowNext stepFlow = iota
	// flowSkip starts the next step without recording the action.
	flowSkip
	flowVerified
)

// runState is the bookkeeping of one goal run.
type runState struct {
	goal       string
	history    History
	tracker    *delta.Tracker
	guard      *guard.Guard
	crop       *schemas.Rect
	prevFrame  *image.RGBA
	prevAction *schemas.Action
	trail      *trail
	logger     *zap.Logger
}

// Run pursues goal until it is verified, the step budget runs out, the run is
// cancelled (ctx or the stop chord) or a collaborator or execution failure
// occurs. The returned error is non-nil only for invalid input.
func (p *Pilot) Run(ctx context.Context, goal string) (*RunResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, errors.New("goal must not be empty")
	}

	runID := uuidNewString()
	logger, release := p.loggerFor(runID)
	defer release()

	result := &RunResult{RunID: runID, Goal: goal, Started: time.Now()}
	rs := &runState{
		goal:    goal,
		tracker: delta.NewTracker(p.cfg.NoChangeThreshold),
		guard:   guard.New(p.cfg.AimExpireDelta),
		trail:   newTrail(ctx, p.recorder, runID, logger),
		logger:  logger,
	}
	rs.trail.begin(audit.RunInfo{ID: runID, Goal: goal, Mode: "run", StartedAt: result.Started})
	logger.Info("Starting goal run.", zap.String("goal", goal), zap.Int("max_steps", p.cfg.MaxSteps), zap.Bool("mouse", p.cfg.MouseEnabled))

	if p.watcher != nil {
		p.watcher.Reset()
	}
	_ = hotkey.Supervise(ctx, p.watcher, func(ctx context.Context) error {
		result.Outcome, result.Code, result.Err = p.loop(ctx, rs, result)
		return nil
	})

	result.History = rs.history.Lines()
	result.Ended = time.Now()
	switch result.Outcome {
	case OutcomeCancelled:
		if p.watcher != nil && p.watcher.Stopped() {
			logger.Warn("Aborted (hotkey).")
		} else {
			logger.Warn("Aborted.")
		}
	case OutcomeVerified:
		logger.Info("Goal verified.", zap.Int("steps", result.Steps))
	case OutcomeMaxSteps:
		logger.Warn("Step limit reached.", zap.Int("max_steps", p.cfg.MaxSteps))
	default:
		logger.Error("Run ended with a failure.", zap.String("outcome", result.Outcome.String()), zap.String("code", string(result.Code)), zap.Error(result.Err))
	}
	rs.trail.end(result.Outcome.String())
	return result, nil
}

func (p *Pilot) loggerFor(runID string) (*zap.Logger, func()) {
	if p.runLogger == nil {
		return p.logger.With(zap.String("run_id", runID)), func() {}
	}
	return p.runLogger(p.logger, runID)
}

func (p *Pilot) loop(ctx context.Context, rs *runState, result *RunResult) (Outcome, ErrorCode, error) {
	for step := 1; step <= p.cfg.MaxSteps; step++ {
		if ctx.Err() != nil {
			return OutcomeCancelled, "", nil
		}
		result.Steps = step

		shot, err := p.shooter.Capture(ctx, rs.crop)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, "", nil
			}
			return OutcomeExecutionError, ErrCodeCaptureFailure, err
		}
		res := grounding.New(shot.Frame.Screen, p.cfg.FocusCropSize)
		rs.trail.shot(step, shot)

		if rs.prevFrame != nil {
			sig := ""
			if rs.prevAction != nil {
				sig = delta.Signature(*rs.prevAction, res)
			}
			obs := rs.tracker.Observe(delta.Compute(rs.prevFrame, shot.Frame.Image), sig)
			if rs.guard.Expire(obs.Delta) {
				rs.logger.Info("AIM expired after a large screen change.", zap.Int("step", step), zap.Float64("delta", obs.Delta))
			}
		}

		var aim *schemas.Rect
		if r, ok := rs.guard.Region(); ok {
			aim = &r
		}
		meta := MetaLines(MetaInput{
			State:             rs.tracker.State(),
			NoChangeThreshold: p.cfg.NoChangeThreshold,
			LastAction:        rs.prevAction,
			Aim:               aim,
			Resolver:          res,
		})
		dc := DecisionContext{
			Goal:         rs.goal,
			History:      rs.history.Tail(p.cfg.HistoryTail) + "\n" + meta,
			Shot:         shot,
			Cursor:       capture.CursorPos(ctx, p.cursor, res),
			MouseAllowed: p.cfg.MouseEnabled,
		}

		action, raw, err := p.collab.Decide(ctx, dc)
		rs.trail.exchange(step, "decide", raw)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, "", nil
			}
			code := ErrCodeCollaboratorFailure
			if errors.Is(err, ErrUnparsableAction) {
				code = ErrCodeUnparsableAction
			}
			return OutcomeCollaboratorFailure, code, err
		}
		rs.logger.Info("Step decided.",
			zap.Int("step", step),
			zap.String("action", Describe(action, res)),
			zap.String("note", action.Note))
		rs.crop = nil

		flow, err := p.dispatch(ctx, rs, step, action, res)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, "", nil
			}
			err = fmt.Errorf("step %d (%s): %w", step, action.Kind, err)
			switch {
			case errors.Is(err, ErrVerificationCapture):
				return OutcomeExecutionError, ErrCodeCaptureFailure, err
			case errors.Is(err, ErrVerificationFailed):
				return OutcomeCollaboratorFailure, ErrCodeCollaboratorFailure, err
			case errors.Is(err, ErrNoAimRegion), errors.Is(err, ErrNoCropRegion):
				return OutcomeExecutionError, ErrCodeNoRegion, err
			}
			return OutcomeExecutionError, ErrCodeExecutionFailure, err
		}
		switch flow {
		case flowVerified:
			return OutcomeVerified, "", nil
		case flowSkip:
			continue
		}

		p.record(rs, step, Describe(action, res))
		if action.Note != "" {
			p.record(rs, step, "note: "+action.Note)
		}
		prev := action
		rs.prevAction = &prev
		rs.prevFrame = shot.Frame.Image

		if ctx.Err() != nil {
			return OutcomeCancelled, "", nil
		}
		if err := p.sleep(ctx, p.cfg.PostActionDelay(action.Kind)); err != nil {
			return OutcomeCancelled, "", nil
		}
	}
	return OutcomeMaxSteps, "", nil
}

// dispatch applies one decided action: region bookkeeping, waiting,
// verification, guarded clicks or plain execution.
func (p *Pilot) dispatch(ctx context.Context, rs *runState, step int, a schemas.Action, res grounding.Resolver) (stepFlow, error) {
	if a.Kind.IsPointer() && !p.cfg.MouseEnabled {
		p.ignore(rs, step, guard.ReasonMouseDisabled)
		return flowNext, nil
	}

	switch a.Kind {
	case schemas.KindAim:
		r, ok := res.ResolveAimRect(a)
		if !ok {
			return flowNext, ErrNoAimRegion
		}
		rs.guard.Set(r)
		rs.crop = &r
		rs.logger.Debug("AIM set.", zap.Int("step", step), zap.Stringer("region", r))

	case schemas.KindPoint, schemas.KindRequestCrop:
		r, ok := res.ResolveCropRect(a)
		if !ok {
			return flowNext, ErrNoCropRegion
		}
		rs.crop = &r

	case schemas.KindWait:
		return flowNext, p.sleep(ctx, time.Duration(a.WaitOrDefault())*time.Second)

	case schemas.KindDone:
		v, verr := p.verifier.Verify(ctx, rs.goal)
		rs.trail.verification(step, v)
		if ctx.Err() != nil {
			return flowNext, ctx.Err()
		}
		if verr != nil {
			return flowNext, verr
		}
		if v.Verdict.Confirmed {
			p.record(rs, step, "done_verified")
			rs.guard.Clear()
			return flowVerified, nil
		}
		p.record(rs, step, "done_rejected: "+v.Verdict.Reason)

	case schemas.KindClick, schemas.KindDoubleClick:
		verdict := rs.guard.Check(a, res)
		if !verdict.Allowed {
			p.ignore(rs, step, verdict.Reason)
			if verdict.Reason == guard.ReasonMissingCoords {
				return flowSkip, nil
			}
			return flowNext, nil
		}
		return flowNext, p.exec.Execute(ctx, a, res)

	default:
		return flowNext, p.exec.Execute(ctx, a, res)
	}
	return flowNext, nil
}

func (p *Pilot) ignore(rs *runState, step int, reason guard.Reason) {
	rs.logger.Warn("Action ignored.", zap.Int("step", step), zap.String("reason", string(reason)))
	p.record(rs, step, fmt.Sprintf("IGNORED (%s)", reason))
}

// record appends a history line and mirrors it to the transcript and the observer.
func (p *Pilot) record(rs *runState, step int, text string) {
	line := rs.history.Add(step, text)
	rs.trail.line(line)
	p.observe(line)
}
