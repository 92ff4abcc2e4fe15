package input

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// Synthesizer executes one action at a time against a Sink.
type Synthesizer struct {
	sink   Sink
	dwell  time.Duration
	glider *Glider
	logger *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithDoubleClickDwell sets the pause between the two clicks of a double click.
func WithDoubleClickDwell(d time.Duration) Option {
	return func(s *Synthesizer) { s.dwell = d }
}

// WithGlider replaces cursor jumps with eased paths. A nil glider keeps jumps.
func WithGlider(g *Glider) Option {
	return func(s *Synthesizer) { s.glider = g }
}

// NewSynthesizer creates a Synthesizer over sink.
func NewSynthesizer(sink Sink, logger *zap.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		sink:   sink,
		dwell:  80 * time.Millisecond,
		logger: logger.Named("input"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute performs the OS effect of a. Kinds without an effect (aim, point,
// request_crop, wait, done) return nil immediately.
func (s *Synthesizer) Execute(ctx context.Context, a schemas.Action, res grounding.Resolver) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch a.Kind {
	case schemas.KindMove, schemas.KindClick, schemas.KindDoubleClick:
		p, ok := res.ResolvePoint(a.Target)
		if !ok {
			return fmt.Errorf("%w: %s needs bbox, x_px/y_px or x/y", ErrMissingParameters, a.Kind)
		}
		if err := s.moveTo(ctx, p); err != nil {
			return err
		}
		switch a.Kind {
		case schemas.KindClick:
			return s.click(ctx, p, a.ButtonOrDefault())
		case schemas.KindDoubleClick:
			if err := s.click(ctx, p, a.ButtonOrDefault()); err != nil {
				return err
			}
			if err := s.sink.Sleep(ctx, s.dwell); err != nil {
				return err
			}
			return s.click(ctx, p, a.ButtonOrDefault())
		}
		return nil

	case schemas.KindScroll:
		if a.ScrollDY == 0 {
			return nil
		}
		return s.sink.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type:       schemas.MouseWheel,
			WheelDelta: a.ScrollDY * WheelDelta,
		})

	case schemas.KindKeys:
		events, err := ParseKeys(a.Keys)
		if err != nil {
			return err
		}
		return s.emitKeys(ctx, events)

	case schemas.KindTypeText:
		if a.Text == nil {
			return fmt.Errorf("%w: type_text needs text", ErrMissingParameters)
		}
		return s.emitKeys(ctx, appendText(nil, *a.Text))

	case schemas.KindAim, schemas.KindPoint, schemas.KindRequestCrop, schemas.KindWait, schemas.KindDone:
		return nil

	default:
		return fmt.Errorf("input: unknown action kind %s", a.Kind)
	}
}

func (s *Synthesizer) moveTo(ctx context.Context, p schemas.Point) error {
	if s.glider == nil {
		return s.sink.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: p.X, Y: p.Y})
	}

	start, err := s.sink.Cursor(ctx)
	if err != nil {
		s.logger.Debug("Cursor position unavailable, jumping instead of gliding.", zap.Error(err))
		return s.sink.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: p.X, Y: p.Y})
	}
	for i, wp := range s.glider.Path(start, p) {
		if i > 0 {
			if err := s.sink.Sleep(ctx, s.glider.cfg.StepInterval); err != nil {
				return err
			}
		}
		if err := s.sink.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: wp.X, Y: wp.Y}); err != nil {
			return err
		}
	}
	return nil
}

// click presses and releases button. The release is sent even if ctx is
// cancelled in between, so a button is never left held down.
func (s *Synthesizer) click(ctx context.Context, p schemas.Point, button schemas.MouseButton) error {
	down := schemas.MouseEventData{Type: schemas.MousePress, X: p.X, Y: p.Y, Button: button}
	if err := s.sink.DispatchMouseEvent(ctx, down); err != nil {
		return err
	}
	up := schemas.MouseEventData{Type: schemas.MouseRelease, X: p.X, Y: p.Y, Button: button}
	return s.sink.DispatchMouseEvent(context.WithoutCancel(ctx), up)
}

// emitKeys sends a planned sequence to completion. Cancellation is checked
// before the action starts, never in the middle of a chord.
func (s *Synthesizer) emitKeys(ctx context.Context, events []schemas.KeyEventData) error {
	detached := context.WithoutCancel(ctx)
	for _, ev := range events {
		if err := s.sink.DispatchKeyEvent(detached, ev); err != nil {
			return fmt.Errorf("input: key event failed: %w", err)
		}
	}
	return nil
}
