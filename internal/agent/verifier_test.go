package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
)

type failingShooter struct{ err error }

func (s failingShooter) Capture(context.Context, *schemas.Rect) (*capture.Shot, error) {
	return nil, s.err
}

func TestVerifier_Verify(t *testing.T) {
	logger := zaptest.NewLogger(t)
	shooter := capture.NewCapturer(&frameSequence{frames: frames(1, 64, 48)}, nil, captureTestConfig(), logger)

	t.Run("settles, then confirms", func(t *testing.T) {
		collab := &scriptedCollaborator{verdicts: []schemas.Verdict{{Confirmed: true, Reason: "ok"}}}
		v := NewVerifier(shooter, collab, 250*time.Millisecond, logger)
		sleeps := &sleepLog{}
		v.sleep = sleeps.sleep

		out, err := v.Verify(context.Background(), "goal")
		require.NoError(t, err)
		assert.True(t, out.Verdict.Confirmed)
		assert.Equal(t, "ok", out.Verdict.Reason)
		require.NotNil(t, out.Shot)
		assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeps.all())
		assert.Equal(t, "goal", collab.verifies[0].Goal)
	})

	t.Run("empty reason becomes n/a", func(t *testing.T) {
		collab := &scriptedCollaborator{verdicts: []schemas.Verdict{{Confirmed: false}}}
		v := NewVerifier(shooter, collab, 0, logger)
		out, err := v.Verify(context.Background(), "goal")
		require.NoError(t, err)
		assert.Equal(t, schemas.Verdict{Reason: "n/a"}, out.Verdict)
	})

	t.Run("collaborator failure", func(t *testing.T) {
		v := NewVerifier(shooter, &scriptedCollaborator{}, 0, logger)
		out, err := v.Verify(context.Background(), "goal")
		assert.ErrorIs(t, err, ErrVerificationFailed)
		assert.ErrorIs(t, err, errScriptExhausted)
		assert.Equal(t, schemas.Verdict{Reason: "n/a"}, out.Verdict)
		assert.NotNil(t, out.Shot)
	})

	t.Run("capture failure", func(t *testing.T) {
		grabErr := errors.New("no display")
		v := NewVerifier(failingShooter{err: grabErr}, &scriptedCollaborator{}, 0, logger)
		out, err := v.Verify(context.Background(), "goal")
		assert.ErrorIs(t, err, ErrVerificationCapture)
		assert.ErrorIs(t, err, grabErr)
		assert.False(t, out.Verdict.Confirmed)
		assert.Nil(t, out.Shot)
	})

	t.Run("cancelled while settling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v := NewVerifier(shooter, &scriptedCollaborator{}, time.Hour, logger)
		_, err := v.Verify(ctx, "goal")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
