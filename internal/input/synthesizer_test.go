package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

var testResolver = grounding.New(schemas.Screen{Width: 1920, Height: 1080}, 320)

func strPtr(s string) *string { return &s }

func setupSynthesizer(t *testing.T, opts ...Option) (*Synthesizer, *recordingSink) {
	t.Helper()
	sink := newRecordingSink()
	return NewSynthesizer(sink, zaptest.NewLogger(t), opts...), sink
}

func TestSynthesizer_Click(t *testing.T) {
	s, sink := setupSynthesizer(t)
	action := schemas.Action{Kind: schemas.KindClick, Target: schemas.PixelCoord{X: 100, Y: 200}}

	require.NoError(t, s.Execute(context.Background(), action, testResolver))

	assert.Equal(t, []schemas.MouseEventData{
		{Type: schemas.MouseMove, X: 100, Y: 200},
		{Type: schemas.MousePress, X: 100, Y: 200, Button: schemas.ButtonLeft},
		{Type: schemas.MouseRelease, X: 100, Y: 200, Button: schemas.ButtonLeft},
	}, sink.MouseEvents())
}

func TestSynthesizer_ClickTargets(t *testing.T) {
	testCases := []struct {
		name   string
		target schemas.Coord
		button schemas.MouseButton
		want   schemas.Point
	}{
		{"bbox center", schemas.BBoxCoord{Box: schemas.Rect{Left: 10, Top: 20, Right: 30, Bottom: 40}}, schemas.ButtonNone, schemas.Point{X: 20, Y: 30}},
		{"normalized", schemas.NormalizedCoord{X: 0.5, Y: 0.5}, schemas.ButtonRight, schemas.Point{X: 960, Y: 540}},
		{"normalized corner", schemas.NormalizedCoord{X: 1, Y: 1}, schemas.ButtonMiddle, schemas.Point{X: 1919, Y: 1079}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, sink := setupSynthesizer(t)
			action := schemas.Action{Kind: schemas.KindClick, Target: tc.target, Button: tc.button}
			require.NoError(t, s.Execute(context.Background(), action, testResolver))

			events := sink.MouseEvents()
			require.Len(t, events, 3)
			assert.Equal(t, tc.want, schemas.Point{X: events[1].X, Y: events[1].Y})
			wantButton := tc.button
			if wantButton == schemas.ButtonNone {
				wantButton = schemas.ButtonLeft
			}
			assert.Equal(t, wantButton, events[1].Button)
		})
	}
}

func TestSynthesizer_DoubleClickDwell(t *testing.T) {
	s, sink := setupSynthesizer(t, WithDoubleClickDwell(50*time.Millisecond))
	action := schemas.Action{Kind: schemas.KindDoubleClick, Target: schemas.PixelCoord{X: 5, Y: 6}}

	require.NoError(t, s.Execute(context.Background(), action, testResolver))

	events := sink.MouseEvents()
	require.Len(t, events, 5)
	assert.Equal(t, schemas.MouseMove, events[0].Type)
	for i, want := range []schemas.MouseEventType{schemas.MousePress, schemas.MouseRelease, schemas.MousePress, schemas.MouseRelease} {
		assert.Equal(t, want, events[i+1].Type)
	}
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, sink.sleepDurations)
}

func TestSynthesizer_MoveOnly(t *testing.T) {
	s, sink := setupSynthesizer(t)
	action := schemas.Action{Kind: schemas.KindMove, Target: schemas.PixelCoord{X: 7, Y: 8}}

	require.NoError(t, s.Execute(context.Background(), action, testResolver))
	assert.Equal(t, []schemas.MouseEventData{{Type: schemas.MouseMove, X: 7, Y: 8}}, sink.MouseEvents())
}

func TestSynthesizer_MissingCoordinates(t *testing.T) {
	for _, kind := range []schemas.ActionKind{schemas.KindMove, schemas.KindClick, schemas.KindDoubleClick} {
		t.Run(kind.String(), func(t *testing.T) {
			s, sink := setupSynthesizer(t)
			err := s.Execute(context.Background(), schemas.Action{Kind: kind}, testResolver)
			assert.ErrorIs(t, err, ErrMissingParameters)
			assert.Empty(t, sink.MouseEvents())
		})
	}
}

func TestSynthesizer_Scroll(t *testing.T) {
	s, sink := setupSynthesizer(t)

	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindScroll, ScrollDY: 3}, testResolver))
	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindScroll, ScrollDY: -1}, testResolver))
	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindScroll}, testResolver))

	assert.Equal(t, []schemas.MouseEventData{
		{Type: schemas.MouseWheel, WheelDelta: 360},
		{Type: schemas.MouseWheel, WheelDelta: -120},
	}, sink.MouseEvents(), "a zero delta emits nothing")
}

func TestSynthesizer_Keys(t *testing.T) {
	s, sink := setupSynthesizer(t)
	action := schemas.Action{Kind: schemas.KindKeys, Keys: []string{"ctrl+l"}}

	require.NoError(t, s.Execute(context.Background(), action, testResolver))
	assert.Equal(t, []schemas.KeyEventData{vkDown(vkCtrl), vkDown('L'), vkUp('L'), vkUp(vkCtrl)}, sink.KeyEvents())
}

func TestSynthesizer_KeysUnknownEmitsNothing(t *testing.T) {
	s, sink := setupSynthesizer(t)
	action := schemas.Action{Kind: schemas.KindKeys, Keys: []string{"ctrl", "shift", "nope"}}

	err := s.Execute(context.Background(), action, testResolver)
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Empty(t, sink.KeyEvents())
}

func TestSynthesizer_TypeText(t *testing.T) {
	s, sink := setupSynthesizer(t)

	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindTypeText, Text: strPtr("hé")}, testResolver))
	want := append(uniPress('h'), uniPress('é')...)
	assert.Equal(t, want, sink.KeyEvents())

	// Empty text is valid and types nothing; absent text is an error.
	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindTypeText, Text: strPtr("")}, testResolver))
	err := s.Execute(context.Background(), schemas.Action{Kind: schemas.KindTypeText}, testResolver)
	assert.ErrorIs(t, err, ErrMissingParameters)
	assert.Len(t, sink.KeyEvents(), 4)
}

func TestSynthesizer_NoEffectKinds(t *testing.T) {
	s, sink := setupSynthesizer(t)
	for _, kind := range []schemas.ActionKind{schemas.KindAim, schemas.KindPoint, schemas.KindRequestCrop, schemas.KindWait, schemas.KindDone} {
		action := schemas.Action{Kind: kind, Target: schemas.PixelCoord{X: 1, Y: 1}}
		require.NoError(t, s.Execute(context.Background(), action, testResolver), kind.String())
	}
	assert.Empty(t, sink.MouseEvents())
	assert.Empty(t, sink.KeyEvents())
}

func TestSynthesizer_CancelledBeforeStart(t *testing.T) {
	s, sink := setupSynthesizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Execute(ctx, schemas.Action{Kind: schemas.KindKeys, Keys: []string{"enter"}}, testResolver)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.KeyEvents())
}

func TestSynthesizer_ReleaseSurvivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, sink := setupSynthesizer(t)
	sink.MockDispatchMouseEvent = func(c context.Context, data schemas.MouseEventData) error {
		err := sink.DefaultDispatchMouseEvent(c, data)
		if data.Type == schemas.MousePress {
			// The stop request lands between press and release.
			cancel()
		}
		return err
	}

	err := s.Execute(ctx, schemas.Action{Kind: schemas.KindClick, Target: schemas.PixelCoord{X: 1, Y: 2}}, testResolver)
	require.NoError(t, err)

	events := sink.MouseEvents()
	require.Len(t, events, 3)
	assert.Equal(t, schemas.MouseRelease, events[2].Type)
}

func TestSynthesizer_ChordCompletesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, sink := setupSynthesizer(t)
	var count int
	sink.MockDispatchKeyEvent = func(c context.Context, data schemas.KeyEventData) error {
		count++
		if count == 1 {
			cancel()
		}
		sink.mu.Lock()
		sink.keyEvents = append(sink.keyEvents, data)
		sink.mu.Unlock()
		return c.Err()
	}

	err := s.Execute(ctx, schemas.Action{Kind: schemas.KindKeys, Keys: []string{"ctrl", "alt", "t"}}, testResolver)
	require.NoError(t, err)
	assert.Len(t, sink.KeyEvents(), 6, "every held modifier is released")
}

func TestSynthesizer_KeyErrorWrapped(t *testing.T) {
	s, sink := setupSynthesizer(t)
	boom := errors.New("access denied")
	sink.MockDispatchKeyEvent = func(context.Context, schemas.KeyEventData) error { return boom }

	err := s.Execute(context.Background(), schemas.Action{Kind: schemas.KindKeys, Keys: []string{"tab"}}, testResolver)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "key event failed")
}

func TestSynthesizer_GlideMove(t *testing.T) {
	cfg := config.GlideConfig{Enabled: true, FittsA: 60, FittsB: 90, TargetWidth: 24, StepInterval: 8 * time.Millisecond}
	s, sink := setupSynthesizer(t, WithGlider(NewGlider(cfg)))
	sink.cursor = schemas.Point{X: 0, Y: 0}

	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindMove, Target: schemas.PixelCoord{X: 800, Y: 600}}, testResolver))

	events := sink.MouseEvents()
	require.Greater(t, len(events), 2)
	last := events[len(events)-1]
	assert.Equal(t, schemas.Point{X: 800, Y: 600}, schemas.Point{X: last.X, Y: last.Y})
	assert.Len(t, sink.sleepDurations, len(events)-1)
}

func TestSynthesizer_GlideFallsBackToJump(t *testing.T) {
	cfg := config.GlideConfig{Enabled: true, FittsA: 60, FittsB: 90, TargetWidth: 24, StepInterval: 8 * time.Millisecond}
	s, sink := setupSynthesizer(t, WithGlider(NewGlider(cfg)))
	sink.cursorErr = errors.New("no cursor")

	require.NoError(t, s.Execute(context.Background(), schemas.Action{Kind: schemas.KindMove, Target: schemas.PixelCoord{X: 3, Y: 4}}, testResolver))
	assert.Equal(t, []schemas.MouseEventData{{Type: schemas.MouseMove, X: 3, Y: 4}}, sink.MouseEvents())
}

func TestDryRunSink(t *testing.T) {
	d := NewDryRunSink(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, d.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: 11, Y: 12}))
	require.NoError(t, d.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MousePress, X: 99, Y: 99, Button: schemas.ButtonLeft}))
	require.NoError(t, d.DispatchKeyEvent(ctx, schemas.KeyEventData{Type: schemas.KeyDown, Char: 'x', Unicode: true}))

	pos, err := d.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemas.Point{X: 11, Y: 12}, pos, "only moves update the tracked cursor")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, d.Sleep(cancelled, time.Hour), context.Canceled)
}
