//go:build !windows

package capture

import (
	"context"
	"image"

	"go.uber.org/zap"
)

// ScreenGrabber has no backend on this platform.
type ScreenGrabber struct{}

// NewScreenGrabber always fails with ErrUnsupportedPlatform here.
func NewScreenGrabber(bool, *zap.Logger) (*ScreenGrabber, error) {
	return nil, ErrUnsupportedPlatform
}

func (g *ScreenGrabber) Grab(context.Context) (*image.RGBA, error) {
	return nil, ErrUnsupportedPlatform
}
