// Package input turns decoded actions into synthetic pointer and keyboard events.
package input

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

var (
	// ErrMissingParameters is returned when an action lacks the fields its kind needs.
	ErrMissingParameters = errors.New("input: missing parameters")
	// ErrUnknownKey is returned for key names with no virtual key mapping.
	ErrUnknownKey = errors.New("input: unknown key")
	// ErrUnsupportedPlatform is returned where no OS input backend exists.
	ErrUnsupportedPlatform = errors.New("input: platform not supported")
)

// WheelDelta is the wheel distance of one notch.
const WheelDelta = 120

// Sink is the low-level event surface the Synthesizer drives.
type Sink interface {
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	DispatchKeyEvent(ctx context.Context, data schemas.KeyEventData) error
	// Cursor reports the current pointer position in screen pixels.
	Cursor(ctx context.Context) (schemas.Point, error)
	Sleep(ctx context.Context, d time.Duration) error
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
