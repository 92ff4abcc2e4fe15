package agent

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface used by LLMMind.
type MockLLMClient struct {
	mock.Mock
}

// Generate mocks the LLM generation call.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*schemas.GenerationResult)
	return res, args.Error(1)
}

// Close mocks the client shutdown.
func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Scripted Collaborator --

var errScriptExhausted = errors.New("script exhausted")

// scriptedCollaborator replays decisions and verdicts in order and records what it was shown.
type scriptedCollaborator struct {
	mu        sync.Mutex
	actions   []schemas.Action
	verdicts  []schemas.Verdict
	answer    schemas.QAResult
	decideErr error

	decisions []DecisionContext
	verifies  []VerifyRequest
	questions []QARequest
}

func (c *scriptedCollaborator) Decide(ctx context.Context, dc DecisionContext) (schemas.Action, Raw, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions = append(c.decisions, dc)
	raw := Raw{Request: []byte(`{"format":"SingleAction"}`), Response: `{"type":"stub"}`}
	if c.decideErr != nil {
		return schemas.Action{}, raw, c.decideErr
	}
	if len(c.actions) == 0 {
		return schemas.Action{}, raw, errScriptExhausted
	}
	a := c.actions[0]
	c.actions = c.actions[1:]
	return a, raw, nil
}

func (c *scriptedCollaborator) Verify(ctx context.Context, req VerifyRequest) (schemas.Verdict, Raw, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifies = append(c.verifies, req)
	if len(c.verdicts) == 0 {
		return schemas.Verdict{}, Raw{}, errScriptExhausted
	}
	v := c.verdicts[0]
	c.verdicts = c.verdicts[1:]
	return v, Raw{Response: `{"verdict":"stub"}`}, nil
}

func (c *scriptedCollaborator) Locate(ctx context.Context, req QARequest) (schemas.QAResult, Raw, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questions = append(c.questions, req)
	return c.answer, Raw{Response: `{"answer_text":"stub"}`}, nil
}

// histories returns the History field each decision round saw.
func (c *scriptedCollaborator) histories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.decisions))
	for i, dc := range c.decisions {
		out[i] = dc.History
	}
	return out
}

// -- Executor --

type executedAction struct {
	Action schemas.Action
	Point  schemas.Point
	HasPt  bool
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []executedAction
	err      error
	hook     func()
}

func (e *recordingExecutor) Execute(ctx context.Context, a schemas.Action, res grounding.Resolver) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := res.ResolvePoint(a.Target)
	e.executed = append(e.executed, executedAction{Action: a, Point: p, HasPt: ok})
	if e.hook != nil {
		e.hook()
	}
	return e.err
}

func (e *recordingExecutor) kinds() []schemas.ActionKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schemas.ActionKind, len(e.executed))
	for i, x := range e.executed {
		out[i] = x.Action.Kind
	}
	return out
}

// -- Frames --

// frameSequence hands out frames in order and repeats the last one.
type frameSequence struct {
	mu     sync.Mutex
	frames []*image.RGBA
	calls  int
}

func (s *frameSequence) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.frames[min(s.calls, len(s.frames)-1)]
	s.calls++
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out, nil
}

func solidFrame(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// -- Pilot fixtures --

func testPilotConfig() config.PilotConfig {
	return config.PilotConfig{
		MouseEnabled:      true,
		MaxSteps:          10,
		HistoryTail:       4000,
		AimExpireDelta:    0.08,
		NoChangeThreshold: 0.005,
		FocusCropSize:     200,
	}
}

func captureTestConfig() config.CaptureConfig {
	return config.CaptureConfig{SendCrop: true}
}

// sleepLog records requested pauses without sleeping.
type sleepLog struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepLog) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}

// withSleep replaces the pause function of the loop and of its verifier.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pilot) { p.sleep = fn }
}

type pilotFixture struct {
	pilot  *Pilot
	collab *scriptedCollaborator
	exec   *recordingExecutor
	frames *frameSequence
	sleeps *sleepLog
}

func newPilotFixture(t *testing.T, cfg config.PilotConfig, frames []*image.RGBA, collab *scriptedCollaborator, opts ...Option) *pilotFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	seq := &frameSequence{frames: frames}
	shooter := capture.NewCapturer(seq, nil, captureTestConfig(), logger)
	exec := &recordingExecutor{}
	sleeps := &sleepLog{}
	all := append([]Option{withSleep(sleeps.sleep)}, opts...)
	return &pilotFixture{
		pilot:  NewPilot(shooter, collab, exec, cfg, logger, all...),
		collab: collab,
		exec:   exec,
		frames: seq,
		sleeps: sleeps,
	}
}

// -- Action builders --

func aimAt(r schemas.Rect) schemas.Action {
	return schemas.Action{Kind: schemas.KindAim, Target: schemas.BBoxCoord{Box: r}}
}

func clickAt(x, y int) schemas.Action {
	return schemas.Action{Kind: schemas.KindClick, Target: schemas.PixelCoord{X: x, Y: y}}
}

func keys(k ...string) schemas.Action {
	return schemas.Action{Kind: schemas.KindKeys, Keys: k}
}

func done() schemas.Action {
	return schemas.Action{Kind: schemas.KindDone}
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
