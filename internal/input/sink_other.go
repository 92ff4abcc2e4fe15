//go:build !windows

package input

import (
	"context"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// SystemSink has no backend on this platform; use a DryRunSink instead.
type SystemSink struct{}

// NewSystemSink always fails with ErrUnsupportedPlatform here.
func NewSystemSink() (*SystemSink, error) {
	return nil, ErrUnsupportedPlatform
}

func (s *SystemSink) DispatchMouseEvent(context.Context, schemas.MouseEventData) error {
	return ErrUnsupportedPlatform
}

func (s *SystemSink) DispatchKeyEvent(context.Context, schemas.KeyEventData) error {
	return ErrUnsupportedPlatform
}

func (s *SystemSink) Cursor(context.Context) (schemas.Point, error) {
	return schemas.Point{}, ErrUnsupportedPlatform
}

func (s *SystemSink) Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}
